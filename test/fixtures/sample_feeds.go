// Package fixtures holds canned feed documents for tests.
package fixtures

// SampleRSS is a two-item RSS 2.0 feed.
const SampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech News</title>
    <link>https://technews.example</link>
    <description>Latest technology news</description>
    <item>
      <title>First article</title>
      <link>https://technews.example/1</link>
      <pubDate>Mon, 01 Jan 2024 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second article</title>
      <link>https://technews.example/2</link>
      <pubDate>Tue, 02 Jan 2024 08:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

// SampleRSSUpdated is SampleRSS with a third item prepended, the way a
// feed looks after its publisher posts again.
const SampleRSSUpdated = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech News</title>
    <link>https://technews.example</link>
    <description>Latest technology news</description>
    <item>
      <title>Third article</title>
      <link>https://technews.example/3</link>
      <pubDate>Wed, 03 Jan 2024 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>First article</title>
      <link>https://technews.example/1</link>
      <pubDate>Mon, 01 Jan 2024 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second article</title>
      <link>https://technews.example/2</link>
      <pubDate>Tue, 02 Jan 2024 08:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

// SampleAtom is a single-entry Atom feed.
const SampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Science Daily</title>
  <link href="https://sciencedaily.example"/>
  <updated>2024-01-02T10:00:00Z</updated>
  <id>urn:uuid:60a76c80-d399-11d9-b93C-0003939e0af6</id>
  <entry>
    <title>Research update</title>
    <link href="https://sciencedaily.example/research"/>
    <id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
    <updated>2024-01-02T10:00:00Z</updated>
  </entry>
</feed>`

// NotAFeed is a body no parser should accept.
const NotAFeed = `<html><body>there is no feed here</body></html>`
