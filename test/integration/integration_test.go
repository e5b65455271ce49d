// Package integration holds black-box tests against a running service.
// Start the server (default storefront simulators are enough), then:
//
//	BASE_URL=http://localhost:8080 go test ./test/integration
package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func waitReady(t *testing.T) {
	t.Helper()
	url := baseURL() + "/healthz"
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("service not ready")
}

type ack struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

type offer struct {
	App   string  `json:"app"`
	Price float64 `json:"price"`
}

type task struct {
	TaskID  string         `json:"task_id"`
	Kind    string         `json:"kind"`
	Product string         `json:"product"`
	Status  string         `json:"status"`
	Results map[string]any `json:"results"`
	Best    *offer         `json:"best"`
	Error   string         `json:"error"`
}

func postJSON(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	r, err := http.NewRequest(http.MethodPost, baseURL()+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func awaitTerminal(t *testing.T, id string) task {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL() + "/status/" + id)
		if err != nil {
			t.Fatal(err)
		}
		var tk task
		err = json.NewDecoder(resp.Body).Decode(&tk)
		_ = resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if tk.Status == "completed" || tk.Status == "failed" {
			return tk
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("task %s never terminal", id)
	return task{}
}

func TestIntegration_SearchFlow(t *testing.T) {
	waitReady(t)
	resp, body := postJSON(t, "/search", `{"product":"milk 1l"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}
	var ac ack
	if err := json.Unmarshal(body, &ac); err != nil {
		t.Fatal(err)
	}
	if ac.TaskID == "" || ac.Status != "started" {
		t.Fatalf("unexpected ack %+v", ac)
	}
	tk := awaitTerminal(t, ac.TaskID)
	if tk.Status != "completed" {
		t.Fatalf("unexpected status %q", tk.Status)
	}
	if tk.Best == nil || tk.Best.App == "" || tk.Best.Price <= 0 {
		t.Fatalf("expected a winning offer, got %+v", tk.Best)
	}
	if len(tk.Results) == 0 {
		t.Fatalf("expected per-storefront results")
	}
}

func TestIntegration_EventStream(t *testing.T) {
	waitReady(t)
	_, body := postJSON(t, "/search", `{"product":"milk 1l"}`)
	var ac ack
	if err := json.Unmarshal(body, &ac); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(baseURL() + "/events/" + ac.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	sawSnapshot := false
	sawTerminal := false
	for sc.Scan() {
		line := sc.Text()
		if line == "event: snapshot" {
			sawSnapshot = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"status":"completed"`) {
			sawTerminal = true
		}
	}
	if !sawSnapshot {
		t.Fatalf("expected a snapshot event first")
	}
	// the stream ends after the terminal update unless the task finished
	// before we connected, in which case the snapshot already carried it
	if !sawTerminal {
		tk := awaitTerminal(t, ac.TaskID)
		if tk.Status != "completed" {
			t.Fatalf("stream ended without terminal state: %+v", tk)
		}
	}
}

func TestIntegration_OrderFlow(t *testing.T) {
	waitReady(t)
	resp, body := postJSON(t, "/order", `{"product":"milk 1l","app":"blinkit"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}
	var ac ack
	if err := json.Unmarshal(body, &ac); err != nil {
		t.Fatal(err)
	}
	if ac.Status != "ordering" {
		t.Fatalf("unexpected ack %+v", ac)
	}
	tk := awaitTerminal(t, ac.TaskID)
	if tk.Kind != "order" {
		t.Fatalf("unexpected kind %q", tk.Kind)
	}
	if tk.Status == "failed" && tk.Error == "" {
		t.Fatalf("failed order must carry a reason")
	}
}

func TestIntegration_OrderUnknownStorefront(t *testing.T) {
	waitReady(t)
	resp, body := postJSON(t, "/order", `{"product":"milk 1l","app":"nope"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var ac ack
	if err := json.Unmarshal(body, &ac); err != nil {
		t.Fatal(err)
	}
	tk := awaitTerminal(t, ac.TaskID)
	if tk.Status != "failed" || tk.Error == "" {
		t.Fatalf("expected failed with reason, got %+v", tk)
	}
}

func TestIntegration_StatusUnknownTask(t *testing.T) {
	waitReady(t)
	resp, err := http.Get(baseURL() + "/status/does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_StorefrontsListed(t *testing.T) {
	waitReady(t)
	resp, err := http.Get(baseURL() + "/storefronts")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got struct {
		Storefronts []string `json:"storefronts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Storefronts) == 0 {
		t.Fatalf("expected at least one storefront")
	}
}

func TestIntegration_OpenAPIServed(t *testing.T) {
	waitReady(t)
	resp, err := http.Get(baseURL() + "/openapi.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_DocsServed(t *testing.T) {
	waitReady(t)
	resp, err := http.Get(baseURL() + "/docs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	buf := make([]byte, 1024)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs page")
	}
}
