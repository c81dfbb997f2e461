// Command useradmin manages the credentials table offline. The server
// only reads the auth document, so run this while the server is stopped
// (or restart it afterwards).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wcubed/rss-r/internal/auth"
	"github.com/wcubed/rss-r/internal/persist"
)

func main() {
	persistenceDir := flag.String("persistence", persist.DefaultDir, "directory holding the persisted documents")
	addName := flag.String("add", "", "add a user with the given name")
	password := flag.String("pass", "", "password for the user being added")
	list := flag.Bool("list", false, "list the users in the auth table")
	flag.Parse()

	store := persist.NewStore(*persistenceDir)
	users := auth.NewTable()
	store.LoadOrDefault(persist.AuthFile, users)

	switch {
	case *addName != "":
		if *password == "" {
			log.Fatal("-pass is required with -add")
		}
		id, err := users.AddUser(*addName, *password)
		if err != nil {
			log.Fatal("Could not add user: ", err)
		}
		if err := store.Save(persist.AuthFile, users); err != nil {
			log.Fatal("Could not save auth table: ", err)
		}
		fmt.Printf("Added user %q with id %d\n", *addName, id)

	case *list:
		ids := users.IDs()
		if len(ids) == 0 {
			fmt.Println("No users")
			return
		}
		for _, id := range ids {
			info, _ := users.Lookup(id)
			fmt.Printf("%d\t%s\n", id, info.Name)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}
