package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/secureshare/internal/client/client"
	"github.com/dmitrijs2005/secureshare/internal/client/config"
	"github.com/dmitrijs2005/secureshare/internal/common"
)

var (
	ErrUsage        = errors.New("usage")
	ErrInvalidInput = errors.New("invalid input")
)

type App struct {
	config *config.Config
	api    *client.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return newApp(c, os.Stdin, os.Stdout)
}

func newApp(c *config.Config, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		api:    client.New(c.ServerURL, c.RequestTimeout),
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run dispatches args (without the program name) to a command. Global flags
// (-a, -t, -c) may appear anywhere and are skipped here.
func (a *App) Run(ctx context.Context, args []string) error {
	args = stripGlobalFlags(args)
	if len(args) == 0 {
		a.usage()
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "status":
		err = a.Status(ctx, rest)
	case "verify":
		err = a.Verify(ctx, rest)
	case "fetch":
		err = a.Fetch(ctx, rest)
	case "help", "-h", "--help":
		a.usage()
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command %q\n", cmd)
		a.usage()
		return ErrUsage
	}

	if err != nil && !errors.Is(err, ErrUsage) {
		fmt.Fprintln(a.out, explain(err))
	}
	return err
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `Usage: sharectl [-a server-url] [-t timeout-seconds] <command> [flags]

Commands:
  status -f <file id>
  verify -f <file id> -p <phone>
  fetch  -f <file id> [-p <phone> | -grant <grant>] [-o <output>]`)
}

// stripGlobalFlags drops the flags owned by the config package so the
// command flag sets never see them.
func stripGlobalFlags(args []string) []string {
	global := map[string]bool{"-a": true, "-t": true, "-c": true, "-config": true, "--config": true}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if global[args[i]] {
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// explain renders a failure the way a recipient needs to read it.
func explain(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return "error: " + err.Error()
	}

	switch {
	case errors.Is(err, common.ErrBadCode) && apiErr.AttemptsLeft != nil:
		if apiErr.MaxAttemptsReached {
			return "wrong passcode; no attempts left, ask the sender for a new one"
		}
		return fmt.Sprintf("wrong passcode; %d attempt(s) left", *apiErr.AttemptsLeft)
	case errors.Is(err, common.ErrMaxAttemptsReached):
		return "no attempts left, ask the sender for a new passcode"
	case errors.Is(err, common.ErrRateLimited):
		return fmt.Sprintf("too many passcodes requested, try again in %d minute(s)", apiErr.RemainingMinutes)
	case errors.Is(err, common.ErrExpired):
		return "this share has expired"
	case errors.Is(err, common.ErrConsumed):
		return "this file has already been downloaded"
	case errors.Is(err, common.ErrNotFound):
		return "no such file, or no passcode was sent to this phone"
	case errors.Is(err, common.ErrNotVerified), errors.Is(err, common.ErrInvalidToken):
		return "verification missing or expired, run verify again"
	default:
		return "error: " + apiErr.Message
	}
}
