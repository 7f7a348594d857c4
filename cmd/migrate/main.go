package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/angelmondragon/bikerent-backend/pkg/config"
	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/migrate"
	"github.com/angelmondragon/bikerent-backend/pkg/security"
	"github.com/joho/godotenv"
)

type dbCommand func(ctx context.Context, sqlDB *sql.DB) error

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate|hash-password")
	dir := flag.String("dir", "", "migrations directory; empty uses the migrations built into the binary")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "bikerent-migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// offline commands: no config, no database
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(diskDir(*dir), *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(diskDir(*dir)); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	case "hash-password":
		hashAdminPassword()
		return
	}

	run, ok := dbCommands(*dir, *version)[*cmd]
	if !ok {
		fail("unknown -cmd value: %s", *cmd)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	if cfg.DB.IsSQLite() {
		fail("goose migrations target postgres; sqlite schemas are created with BIKERENT_AUTO_MIGRATE")
	}

	logg = logger.New(logger.Options{
		ServiceName: "bikerent-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	if err := run(ctx, sqlDB); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command completed")
}

func dbCommands(dir, version string) map[string]dbCommand {
	goose := func(command string) dbCommand {
		return func(ctx context.Context, sqlDB *sql.DB) error {
			return migrate.Run(ctx, sqlDB, dir, command)
		}
	}
	return map[string]dbCommand{
		"up":     goose("up"),
		"down":   goose("down"),
		"status": goose("status"),
		"version": func(ctx context.Context, sqlDB *sql.DB) error {
			if version == "" {
				return fmt.Errorf("missing -version for version command")
			}
			return migrate.MigrateToVersion(ctx, sqlDB, dir, version)
		},
	}
}

// hashAdminPassword reads a password from stdin and prints the argon2id string
// expected in BIKERENT_ADMIN_PASSWORD_HASH.
func hashAdminPassword() {
	params, err := config.LoadPassword()
	if err != nil {
		fail("%v", err)
	}
	fmt.Fprint(os.Stderr, "admin password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fail("read password: %v", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fail("password must not be empty")
	}
	hash, err := security.HashPassword(password, params)
	if err != nil {
		fail("hash password: %v", err)
	}
	fmt.Println(hash)
}

func diskDir(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
