// The autofinance-client binary calls one tool on a running service and
// prints the decoded payload. Handy for poking a federation from the shell:
//
//	autofinance-client market get_live_price '{"symbol":"BTC-USD"}'
//	autofinance-client -host trading.internal execution get_portfolio_state
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

func main() {
	host := flag.String("host", "localhost", "Host the services run on")
	timeout := flag.Duration("timeout", 30*time.Second, "Call timeout")
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: autofinance-client [-host HOST] <service> <tool> [json-args]")
		os.Exit(1)
	}
	service, tool := flag.Arg(0), flag.Arg(1)
	if config.GetServicePort(service) == 0 {
		fmt.Fprintf(os.Stderr, "unknown service %q\n", service)
		os.Exit(1)
	}

	args := map[string]any{}
	if flag.NArg() > 2 {
		if err := json.Unmarshal([]byte(flag.Arg(2)), &args); err != nil {
			fmt.Fprintf(os.Stderr, "invalid json args: %v\n", err)
			os.Exit(1)
		}
	}

	config.InitLogger("warn", "console")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool := rpc.NewPool("autofinance-client", *host)
	defer pool.Close()

	payload, err := pool.Call(ctx, service, tool, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "call failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
