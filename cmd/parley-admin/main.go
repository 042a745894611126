// ABOUTME: Admin CLI for the parley relay
// ABOUTME: Registers users, sends chat messages, and prints conversation history

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	client := NewRelayClient(cfg.Relay.URL)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "register":
		err = cmdRegister(ctx, client, args)
	case "chat":
		err = cmdChat(ctx, client, args)
	case "history":
		err = cmdHistory(ctx, client, args)
	case "status":
		err = cmdStatus(ctx, client, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: parley-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register <name> <email>     Register a user")
	fmt.Println("  chat <user-id> <message>    Send a message and print the reply")
	fmt.Println("  history <user-id>           Print a user's conversation history")
	fmt.Println("  status                      Check relay health")
	fmt.Println()
	fmt.Println("Config: " + getAdminConfigPath())
	fmt.Println("Override the relay URL with PARLEY_RELAY_URL.")
}

func cmdRegister(ctx context.Context, client *RelayClient, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: parley-admin register <name> <email>")
	}

	user, err := client.Register(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Println("Registered")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "User ID:\t%s\n", user.UserID)
	fmt.Fprintf(w, "Name:\t%s\n", user.Name)
	fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	fmt.Fprintf(w, "Created:\t%s\n", user.CreatedAt)
	return w.Flush()
}

func cmdChat(ctx context.Context, client *RelayClient, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: parley-admin chat <user-id> <message>")
	}

	reply, err := client.Chat(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

func cmdHistory(ctx context.Context, client *RelayClient, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: parley-admin history <user-id>")
	}

	entries, err := client.History(ctx, args[0])
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No history.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	for _, entry := range entries {
		gray.Printf("[%s]\n", entry.CreatedAt)
		cyan.Print("you: ")
		fmt.Println(entry.Message)
		cyan.Print("bot: ")
		fmt.Println(entry.Reply)
		fmt.Println()
	}
	return nil
}

func cmdStatus(ctx context.Context, client *RelayClient, cfg *Config) error {
	if err := client.Health(ctx); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("healthy ")
	fmt.Println(cfg.Relay.URL)
	return nil
}
