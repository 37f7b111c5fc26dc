// Command hashpw prints a bcrypt hash suitable for BASIC_AUTH_PASSWORD_HASH
// or the password_hash field of a users file.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/tweetshelf/app/auth"
)

type options struct {
	Username string `short:"u" long:"username" description:"Print an environment line for this user"`
	Index    int    `short:"n" long:"index" description:"Numbered credential slot (BASIC_AUTH_USERNAME<n>)"`
}

func main() {
	var opts options
	args, err := flags.Parse(&opts)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	password, err := readPassword(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read password: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	if opts.Username == "" {
		fmt.Println(hash)
		return
	}

	suffix := ""
	if opts.Index > 0 {
		suffix = fmt.Sprint(opts.Index)
	}
	fmt.Printf("BASIC_AUTH_USERNAME%s=%s\n", suffix, opts.Username)
	fmt.Printf("BASIC_AUTH_PASSWORD_HASH%s=%s\n", suffix, hash)
}

// readPassword takes the password from the first argument or one line of stdin.
func readPassword(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
