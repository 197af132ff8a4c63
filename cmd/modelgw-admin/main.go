// modelgw-admin is a small operator CLI that queries a running gateway's
// admin API and pretty-prints the responses.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "budget":
		addr := addrFlag("budget")
		fetch(addr, "/admin/budget", nil)
	case "breakers":
		addr := addrFlag("breakers")
		fetch(addr, "/admin/breakers", nil)
	case "logs":
		handleLogs()
	case "usage":
		handleStats("usage", "/admin/usage")
	case "costs":
		handleStats("costs", "/admin/costs")
	case "health":
		addr := addrFlag("health")
		fetch(addr, "/admin/health", nil)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("modelgw-admin commands:")
	fmt.Println("  budget               Show remaining daily/monthly budget")
	fmt.Println("  breakers             Show circuit state per backend")
	fmt.Println("  logs                 List recent generation logs")
	fmt.Println("     flags: -caller -backend -days")
	fmt.Println("  usage                Usage stats (requests, tokens, cache hits)")
	fmt.Println("  costs                Cost stats per backend and caller")
	fmt.Println("     flags: -caller -days")
	fmt.Println("  health               Gateway health")
	fmt.Println("common flags: -addr (default http://localhost:8080)")
}

// addrFlag parses the flags shared by the no-argument subcommands.
func addrFlag(name string) string {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Gateway address")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}
	return *addr
}

func handleLogs() {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Gateway address")
	caller := fs.String("caller", "", "Filter by caller id")
	backendID := fs.String("backend", "", "Filter by backend id")
	days := fs.Int("days", 1, "Look back N days")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	q := url.Values{}
	if *caller != "" {
		q.Set("caller_id", *caller)
	}
	if *backendID != "" {
		q.Set("backend", *backendID)
	}
	q.Set("from", time.Now().AddDate(0, 0, -*days).Format(time.RFC3339))
	fetch(*addr, "/admin/logs", q)
}

func handleStats(name, path string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Gateway address")
	caller := fs.String("caller", "", "Filter by caller id")
	days := fs.Int("days", 7, "Look back N days")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	q := url.Values{}
	if *caller != "" {
		q.Set("caller_id", *caller)
	}
	q.Set("from", time.Now().AddDate(0, 0, -*days).Format(time.RFC3339))
	fetch(*addr, path, q)
}

// fetch GETs addr+path and pretty-prints the JSON body.
func fetch(addr, path string, query url.Values) {
	u := addr + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(u)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("gateway returned %s: %s", strconv.Itoa(resp.StatusCode), string(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}
