// Package main runs a demo WebSocket client: generate a scenario, submit a
// solve and print progress events until the solve finishes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Generate a small scenario
	genBody := []byte(`{"deliveryPoints":15,"pickupPoints":5,"seed":42}`)
	var sc struct {
		ID string `json:"id"`
	}
	if err := post(base+"/v1/scenarios/generate", genBody, &sc); err != nil {
		log.Fatal(err)
	}
	log.Printf("Scenario ID: %s", sc.ID)

	// Submit a solve
	solveBody := []byte(fmt.Sprintf(`{"scenarioId":%q,"seed":42,"config":{"generations":60}}`, sc.ID))
	var solve struct {
		ID string `json:"id"`
	}
	if err := post(base+"/v1/solves", solveBody, &solve); err != nil {
		log.Fatal(err)
	}
	log.Printf("Solve ID: %s", solve.ID)

	// Stream progress over WebSocket
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/solves/" + solve.ID + "/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	for {
		var m map[string]any
		if err := c.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("WS <- %v", m)
		if t, _ := m["type"].(string); t == "completed" || t == "failed" {
			return
		}
	}
}

func post(url string, body []byte, out any) error {
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
