package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"chat-core/domain"
	"chat-core/internal"
	"chat-core/repositories"
	"chat-core/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	// TOOLS_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"TOOLS_COLOURS" default:"true"`
}

// Demo accounts created by -seed. The shared password keeps local testing
// friction-free; never run this against a real deployment.
var demoUsers = []struct {
	Username string
	Email    string
}{
	{"alice", "alice@example.com"},
	{"bob", "bob@example.com"},
	{"charlie", "charlie@example.com"},
}

const demoPassword = "DemoPassw0rd!"

func main() {
	seed := flag.Bool("seed", false, "Create demo users and a shared room")
	list := flag.Bool("list", false, "List registered users")
	inspect := flag.Bool("inspect", false, "Dump store keys")
	prefix := flag.String("prefix", "msg:", "Prefix to scan with -inspect")
	flag.Parse()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Config error: ", err)
	}

	switch {
	case *seed:
		runSeed(cfg)
	case *list:
		runList(cfg)
	case *inspect:
		runInspect(cfg, *prefix)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func header(cfg Config, text string) string {
	if cfg.Colours {
		return color.New(color.BgBlack, color.FgGreen).Render(text)
	}
	return text
}

func runSeed(cfg Config) {
	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	logger := logs.GetLoggerFromString("ERROR")
	userRepository := repositories.NewUserRepository(db)
	authService := services.NewAuthService(userRepository, 24*time.Hour)

	fmt.Println(header(cfg, " Seeding demo users "))

	ids := make([]string, 0, len(demoUsers))
	for _, demo := range demoUsers {
		if _, err := authService.Register(demo.Username, demo.Email, demoPassword); err != nil {
			fmt.Printf("  %s: %v\n", demo.Username, err)
		} else {
			fmt.Printf("  %s created (password %q)\n", demo.Username, demoPassword)
		}
		user, err := userRepository.GetByUsername(demo.Username)
		if err == nil {
			ids = append(ids, user.ID)
		}
	}

	if len(ids) < 2 {
		fmt.Println("Not enough users to create a shared room")
		return
	}

	roomRepository, err := repositories.NewRoomRepository(db, userRepository, logger)
	if err != nil {
		log.Fatal("Room repository init failed: ", err)
	}
	defer roomRepository.Close()

	creator := domain.Identity{ID: ids[0], Username: demoUsers[0].Username}
	room, err := roomRepository.CreateRoom(creator, ids[1:], "general", true)
	if err != nil {
		log.Fatal("Room creation failed: ", err)
	}
	fmt.Printf("  Room %q created with id %d\n", room.Name, room.ID)
}

func runList(cfg Config) {
	db, err := openReadOnly(cfg.BadgerFilepath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	users, err := repositories.NewUserRepository(db).ListUsers()
	if err != nil {
		log.Fatal("Listing users failed: ", err)
	}

	fmt.Println(header(cfg, " Registered users "))

	table := newTable([]string{"ID", "Username", "Email", "Created At"})
	for _, user := range users {
		table.Append([]string{
			user.ID,
			user.Username,
			user.Email,
			user.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}

func runInspect(cfg Config, prefix string) {
	db, err := openReadOnly(cfg.BadgerFilepath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	fmt.Println(header(cfg, fmt.Sprintf(" Store keys (prefix %q) ", prefix)))

	table := newTable([]string{"Key", "Type", "Timestamp", "Entity", "Detail"})

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Secondary indexes carry no readable payload.
			if strings.HasPrefix(string(item.Key()), "msgidx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				row := internal.DefaultMapper(string(item.Key()), v)
				table.Append([]string{row.Key, row.Type, row.Timestamp, row.EntityID, row.Detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func openReadOnly(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
