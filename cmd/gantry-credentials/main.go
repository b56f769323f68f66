// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/gantry-foundation/gantry/lib/config"
	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/lib/sealed"
	"github.com/gantry-foundation/gantry/lib/secret"
	"github.com/gantry-foundation/gantry/lib/version"
	"github.com/gantry-foundation/gantry/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch subcommand := os.Args[1]; subcommand {
	case "generate":
		return runGenerate(os.Args[2:])
	case "seal":
		return runSeal(os.Args[2:])
	case "show":
		return runShow(os.Args[2:])
	case "delete":
		return runDelete(os.Args[2:])
	case "version":
		fmt.Printf("gantry-credentials %s\n", version.Info())
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: gantry-credentials <subcommand> [flags]

Subcommands:
  generate    Generate an age keypair for credential sealing
  seal        Seal a user's remote-network password into the store
  show        Decrypt and print a stored credential
  delete      Remove a stored credential
  version     Print version information

Run 'gantry-credentials <subcommand> --help' for subcommand flags.
`)
}

// parseFlags parses args and maps pflag's help pseudo-error to a clean
// exit. The boolean reports whether the caller should return nil
// immediately.
func parseFlags(flags *pflag.FlagSet, args []string) (bool, error) {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// loadConfig loads and validates the bridge configuration from
// --config or GANTRY_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the bridge database named by the configuration.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(store.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
	})
}

// runGenerate creates a new age keypair. The public key goes to stdout
// for pasting into bridge.credentials_recipient; the private key goes
// to --key-file (mode 0600) or, without one, to stderr.
func runGenerate(args []string) error {
	var keyFile string

	flags := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	flags.StringVar(&keyFile, "key-file", "", "write the private key to this file instead of stderr")
	if done, err := parseFlags(flags, args); done || err != nil {
		return err
	}

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	if keyFile != "" {
		if err := os.WriteFile(keyFile, append(keypair.PrivateKey.Bytes(), '\n'), 0600); err != nil {
			return fmt.Errorf("writing private key: %w", err)
		}
		fmt.Fprintf(os.Stderr, "# Private key written to %s\n", keyFile)
	} else {
		fmt.Fprintf(os.Stderr, "# Private key (store securely, e.g. as bridge.credentials_key_file):\n")
		fmt.Fprintf(os.Stderr, "%s\n", keypair.PrivateKey.String())
	}
	fmt.Fprintf(os.Stderr, "# Public key (set as bridge.credentials_recipient):\n")
	fmt.Fprintf(os.Stdout, "%s\n", keypair.PublicKey)
	return nil
}

// runSeal encrypts a password to the configured recipient and stores
// it for a bridge user.
func runSeal(args []string) error {
	var (
		configPath   string
		userID       string
		email        string
		passwordFile string
	)

	flags := pflag.NewFlagSet("seal", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to gantry.yaml (defaults to $GANTRY_CONFIG)")
	flags.StringVar(&userID, "user", "", "bridge user's Matrix ID (required)")
	flags.StringVar(&email, "email", "", "remote-network account email (required)")
	flags.StringVar(&passwordFile, "password-file", "-", "file holding the password, or - for stdin")
	if done, err := parseFlags(flags, args); done || err != nil {
		return err
	}

	if userID == "" || email == "" {
		flags.Usage()
		return fmt.Errorf("--user and --email are required")
	}
	mxid, err := ref.ParseUserID(userID)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	recipient := cfg.Bridge.CredentialsRecipient
	if recipient == "" {
		return fmt.Errorf("bridge.credentials_recipient is not configured; run 'gantry-credentials generate' first")
	}
	if err := sealed.ParsePublicKey(recipient); err != nil {
		return fmt.Errorf("bridge.credentials_recipient: %w", err)
	}

	password, err := secret.ReadFromPath(passwordFile)
	if err != nil {
		return err
	}
	defer password.Close()

	ciphertext, err := sealed.Encrypt(password.Bytes(), []string{recipient})
	if err != nil {
		return fmt.Errorf("sealing password: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	err = st.PutLoginCredential(ctx, &store.LoginCredential{
		MXID:           mxid,
		Email:          email,
		PasswordSealed: ciphertext,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Sealed credential for %s\n", mxid)
	fmt.Fprintf(os.Stderr, "  Email: %s\n", email)
	return nil
}

// runShow decrypts the stored credential for a user. The email goes to
// stderr, the password alone to stdout so it can be piped.
func runShow(args []string) error {
	var (
		configPath string
		userID     string
		keyFile    string
	)

	flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to gantry.yaml (defaults to $GANTRY_CONFIG)")
	flags.StringVar(&userID, "user", "", "bridge user's Matrix ID (required)")
	flags.StringVar(&keyFile, "key-file", "", "age private key file (defaults to bridge.credentials_key_file)")
	if done, err := parseFlags(flags, args); done || err != nil {
		return err
	}

	if userID == "" {
		flags.Usage()
		return fmt.Errorf("--user is required")
	}
	mxid, err := ref.ParseUserID(userID)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if keyFile == "" {
		keyFile = cfg.Bridge.CredentialsKeyFile
	}
	if keyFile == "" {
		return fmt.Errorf("no private key: pass --key-file or set bridge.credentials_key_file")
	}

	privateKey, err := secret.ReadFromPath(keyFile)
	if err != nil {
		return err
	}
	defer privateKey.Close()
	if err := sealed.ParsePrivateKey(privateKey); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	credential, err := st.LoginCredential(ctx, mxid)
	if err != nil {
		return err
	}
	if credential == nil {
		return fmt.Errorf("no credential stored for %s", mxid)
	}

	password, err := sealed.Decrypt(credential.PasswordSealed, privateKey)
	if err != nil {
		return fmt.Errorf("unsealing password: %w", err)
	}
	defer password.Close()

	fmt.Fprintf(os.Stderr, "User: %s\n", credential.MXID)
	fmt.Fprintf(os.Stderr, "Email: %s\n", credential.Email)
	fmt.Fprintf(os.Stdout, "%s\n", password.String())
	return nil
}

// runDelete removes the stored credential for a user.
func runDelete(args []string) error {
	var (
		configPath string
		userID     string
	)

	flags := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to gantry.yaml (defaults to $GANTRY_CONFIG)")
	flags.StringVar(&userID, "user", "", "bridge user's Matrix ID (required)")
	if done, err := parseFlags(flags, args); done || err != nil {
		return err
	}

	if userID == "" {
		flags.Usage()
		return fmt.Errorf("--user is required")
	}
	mxid, err := ref.ParseUserID(userID)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteLoginCredential(ctx, mxid); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Deleted credential for %s\n", mxid)
	return nil
}
