package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"roomsplit/internal/auth"
	"roomsplit/internal/backend"
	"roomsplit/internal/config"
	"roomsplit/internal/core"
	"roomsplit/internal/log"
	"roomsplit/internal/storage"
)

const usage = `Usage: roomsplit-admin <command> [flags]

Commands:
  add-user     create an account and its profile
  delete-user  remove a user with their sessions, expenses and receipts
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "add-user":
		return addUser(args[1:], stdin, stdout, stderr)
	case "delete-user":
		return deleteUser(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return flag.ErrHelp
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func addUser(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	fs.SetOutput(stderr)

	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Sign-in email")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", cfg.SQLiteDBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		fmt.Fprintln(stdout, "Usage: roomsplit-admin add-user -name <name> -email <email> [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: name, email")
	}

	displayName := strings.TrimSpace(*name)
	if err := core.ValidateName(displayName); err != nil {
		return err
	}
	addr, err := auth.NormalizeEmail(*email)
	if err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if err := core.ValidatePassword(password); err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	userID := uuid.NewString()
	err = repo.CreateAccount(context.Background(),
		core.Account{UserID: userID, Email: addr, PasswordHash: hash, CreatedAt: now},
		core.UserProfile{UserID: userID, Name: displayName, Email: addr, CreatedAt: now, UpdatedAt: now})
	if errors.Is(err, core.ErrEmailTaken) {
		return fmt.Errorf("user %s already exists", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", addr, userID)
	return nil
}

func deleteUser(args []string, stdout, stderr io.Writer) error {
	cfg := config.Load()
	fs := flag.NewFlagSet("delete-user", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Sign-in email of the user to delete")
	dbPath := fs.String("db", cfg.SQLiteDBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fmt.Fprintln(stdout, "Usage: roomsplit-admin delete-user -email <email> [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}
	addr, err := auth.NormalizeEmail(*email)
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	acct, err := repo.GetAccountByEmail(ctx, addr)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("user %s does not exist", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	// Only the media store is needed here.
	bcfg := backend.FromAppConfig(cfg)
	bcfg.AMQPURL = ""
	bcfg.GoogleSpreadsheetID = ""
	logger := log.New(log.Config{Level: log.ParseLevel(os.Getenv("LOG_LEVEL")), Component: log.ComponentAdmin, Output: stderr})
	integrations, err := backend.NewFactory(logger.Logger).Create(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("failed to initialize media store: %w", err)
	}
	defer integrations.Cleanup()

	removed, err := repo.DeleteUser(ctx, acct.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	receipts := 0
	var failed []string
	for _, e := range removed {
		if !e.HasImage() {
			continue
		}
		if err := integrations.Media.Remove(ctx, e.ImagePath); err != nil {
			logger.WarnContext(ctx, "Failed to delete receipt", log.FieldImagePath, e.ImagePath, log.FieldError, err)
			failed = append(failed, e.ImagePath)
			continue
		}
		receipts++
	}

	fmt.Fprintf(stdout, "User %s deleted with %d expenses and %d receipts\n", addr, len(removed), receipts)
	if len(failed) > 0 {
		return fmt.Errorf("%d receipts could not be deleted: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
