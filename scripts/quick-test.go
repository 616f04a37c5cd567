//go:build ignore

// End-to-end smoke test against a running orchestrator. Walks one bond
// through its full lifecycle: issue, whitelist, buy, close, fund, redeem.
// Run with: go run scripts/quick-test.go <bearer-token>

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const apiURL = "http://localhost:8080/api/v1"

var client = &http.Client{Timeout: 5 * time.Minute}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: go run scripts/quick-test.go <bearer-token>")
		os.Exit(1)
	}
	token := os.Args[1]

	holder := os.Getenv("HOLDER_ADDRESS")
	if holder == "" {
		fmt.Fprintln(os.Stderr, "HOLDER_ADDRESS environment variable is required")
		os.Exit(1)
	}

	isin := fmt.Sprintf("DE000TST%04d", time.Now().Unix()%10000)
	maturity := time.Now().AddDate(1, 0, 0).UTC().Format(time.RFC3339)

	fmt.Printf("1. Issuing bond %s...\n", isin)
	issue := post(token, "/bonds", map[string]any{
		"isin":                 isin,
		"cap":                  1000000,
		"price_at_issue":       98,
		"coupon_rate_per_year": 500,
		"maturity":             maturity,
	})
	fmt.Printf("   %s (tx %s)\n", issue["status"], issue["tx_hash"])

	fmt.Println("2. Refreshing read model to find the new bond...")
	post(token, "/bonds/refresh", nil)
	bond := findBond(token, isin)
	fmt.Printf("   bond deployed at %s\n", bond)

	fmt.Printf("3. Whitelisting holder %s...\n", holder)
	report(post(token, "/bonds/"+bond+"/whitelist", map[string]any{
		"holder": holder,
		"status": true,
	}))

	fmt.Println("4. Minting settlement tokens to the holder...")
	report(post(token, "/payment-token/mint", map[string]any{
		"to":     holder,
		"amount": "10000",
	}))

	fmt.Println("5. Buying into the bond...")
	report(post(token, "/bonds/"+bond+"/buy", map[string]any{"amount": "980"}))

	fmt.Println("6. Closing issuance...")
	report(post(token, "/bonds/"+bond+"/close", nil))

	fmt.Println("7. Funding the payout escrow...")
	report(post(token, "/bonds/"+bond+"/fund", nil))

	fmt.Println("8. Redeeming...")
	out := post(token, "/bonds/"+bond+"/redeem", map[string]any{"amount": 10})
	report(out)
	if out["status"] == "pending" {
		fmt.Println("   payout decryption still pending; claiming again...")
		report(post(token, "/bonds/"+bond+"/claim", nil))
	}

	fmt.Println("Done.")
}

func post(token, path string, body any) map[string]any {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fatal("encode request: %v", err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, apiURL+path, &buf)
	if err != nil {
		fatal("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		fatal("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		fatal("POST %s: HTTP %d: %s", path, resp.StatusCode, raw)
	}

	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

func findBond(token, isin string) string {
	req, err := http.NewRequest(http.MethodGet, apiURL+"/bonds", nil)
	if err != nil {
		fatal("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		fatal("GET /bonds: %v", err)
	}
	defer resp.Body.Close()

	var bonds []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&bonds); err != nil {
		fatal("decode bonds: %v", err)
	}
	for _, b := range bonds {
		if b["isin"] == isin {
			return b["bond"].(string)
		}
	}
	fatal("bond %s not found in snapshot", isin)
	return ""
}

func report(out map[string]any) {
	if hash, ok := out["tx_hash"]; ok {
		fmt.Printf("   %s (tx %s)\n", out["status"], hash)
		return
	}
	fmt.Printf("   %s\n", out["status"])
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
