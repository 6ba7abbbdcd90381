package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/repository"
	"github.com/noah-isme/edupacket-api/internal/service"
	"github.com/noah-isme/edupacket-api/pkg/config"
	"github.com/noah-isme/edupacket-api/pkg/database"
	"github.com/noah-isme/edupacket-api/pkg/logger"
)

var (
	readPasswordFunc = term.ReadPassword

	errUsage = errors.New("usage")
)

type adminProvisioner interface {
	EnsureAdmin(ctx context.Context, name, email, password string) (*models.Account, bool, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	accounts := service.NewAccountService(repository.NewAccountRepository(db), logr)
	if err := run(os.Args[1:], accounts, os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func run(args []string, accounts adminProvisioner, out io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(out)
	name := fs.String("name", "Administrator", "display name for a new admin")
	email := fs.String("email", "", "admin email (required)")
	password := fs.String("password", "", "admin password; prompted when omitted")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if strings.TrimSpace(*email) == "" {
		fs.Usage()
		return errUsage
	}

	pwd := *password
	if pwd == "" {
		fmt.Fprint(out, "Enter password: ")
		raw, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		pwd = string(raw)
	}
	if pwd == "" {
		fs.Usage()
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	account, created, err := accounts.EnsureAdmin(ctx, *name, *email, pwd)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "admin %s created\n", account.Email)
	} else {
		fmt.Fprintf(out, "account %s promoted to admin\n", account.Email)
	}
	return nil
}
