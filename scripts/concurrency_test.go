//go:build ignore
// +build ignore

// Package main is a manual concurrency stress test for the borrow endpoint.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <book_id> <person1_id> [person2_id ...]
//
// Or with environment variables:
//
//	BOOK_ID=<uuid>  PERSON_IDS=<uuid1>,<uuid2>,...  go run ./scripts/concurrency_test.go
//
// What it does:
//  1. Logs in as LIBRARIAN_USER / LIBRARIAN_PASSWORD.
//  2. Fires one goroutine per person, all borrowing the same book at once.
//  3. Expects exactly one 201 and a 409 for everyone else.
//
// Prerequisites:
//   - Server running (SERVER_ADDR, default http://localhost:8080).
//   - The book is AVAILABLE and every person is ACTIVE.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type borrowResult struct {
	PersonID   string
	StatusCode int
	Body       string
	Err        error
}

func main() {
	serverAddr := envOr("SERVER_ADDR", defaultServerAddr)

	bookID := os.Getenv("BOOK_ID")
	var personIDs []string
	if raw := os.Getenv("PERSON_IDS"); raw != "" {
		personIDs = strings.Split(raw, ",")
	}
	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		personIDs = args[1:]
	}

	if bookID == "" {
		log.Fatal("Usage: BOOK_ID=<uuid> PERSON_IDS=<p1,p2,...> go run ./scripts/concurrency_test.go\n" +
			"  or: go run ./scripts/concurrency_test.go <book_id> <person1_id> [person2_id ...]")
	}
	if len(personIDs) == 0 {
		log.Fatal("At least one person ID must be provided via PERSON_IDS or positional args")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	token, err := login(client, serverAddr, envOr("LIBRARIAN_USER", "admin"), os.Getenv("LIBRARIAN_PASSWORD"))
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	fmt.Printf("=== Borrow Concurrency Test ===\n")
	fmt.Printf("Server  : %s\n", serverAddr)
	fmt.Printf("Book    : %s\n", bookID)
	fmt.Printf("Persons : %d\n\n", len(personIDs))

	results := make([]borrowResult, len(personIDs))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, pid := range personIDs {
		wg.Add(1)
		go func(idx int, personID string) {
			defer wg.Done()
			<-start
			results[idx] = attemptBorrow(client, serverAddr, token, bookID, strings.TrimSpace(personID))
		}(i, pid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Println("All requests completed.")
	fmt.Println()

	var borrowed, conflicts, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] person=%-38s err=%v\n", r.PersonID, r.Err)
		case r.StatusCode == http.StatusCreated:
			borrowed++
			fmt.Printf("  [OK  ] person=%-38s status=%d\n", r.PersonID, r.StatusCode)
		case r.StatusCode == http.StatusConflict:
			conflicts++
			fmt.Printf("  [409 ] person=%-38s %s\n", r.PersonID, r.Body)
		default:
			failures++
			fmt.Printf("  [FAIL] person=%-38s status=%d %s\n", r.PersonID, r.StatusCode, r.Body)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Borrowed  : %d\n", borrowed)
	fmt.Printf("Conflicts : %d\n", conflicts)
	fmt.Printf("Failures  : %d\n", failures)

	if borrowed != 1 || failures > 0 {
		fmt.Printf("\n[FAIL] expected exactly one successful borrow, got %d (failures %d)\n", borrowed, failures)
		os.Exit(1)
	}
	fmt.Println("\n[PASS] exactly one borrow succeeded")
}

func login(client *http.Client, serverAddr, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := client.Post(serverAddr+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Token, nil
}

// attemptBorrow sends POST /api/borrowings for personID.
func attemptBorrow(client *http.Client, serverAddr, token, bookID, personID string) borrowResult {
	body, _ := json.Marshal(map[string]string{"bookId": bookID, "personId": personID})
	req, err := http.NewRequest(http.MethodPost, serverAddr+"/api/borrowings", bytes.NewReader(body))
	if err != nil {
		return borrowResult{PersonID: personID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return borrowResult{PersonID: personID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	return borrowResult{PersonID: personID, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
