package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/dbKV/rpc/common"
)

func echo(req []byte) []byte {
	return append([]byte("echo:"), req...)
}

func TestStoreRoute(t *testing.T) {
	ts := httptest.NewServer(NewHandler(echo))
	defer ts.Close()

	c := NewHttpClientTransport()
	if err := c.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{ts.URL}, RetryCount: 2},
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	resp, err := c.Send([]byte("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "echo:hello" {
		t.Errorf("Expected echo:hello, got %q", resp)
	}
}

func TestStoreRouteRejectsGet(t *testing.T) {
	ts := httptest.NewServer(NewHandler(echo))
	defer ts.Close()

	resp, err := http.Get(ts.URL + StorePath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestMetricsRoute(t *testing.T) {
	ts := httptest.NewServer(NewHandler(echo, WithMetrics(func(w io.Writer) {
		fmt.Fprintln(w, "dbkv_db_reads_total 3")
	})))
	defer ts.Close()

	resp, err := http.Get(ts.URL + MetricsPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "dbkv_db_reads_total 3") {
		t.Errorf("Expected counter in metrics output, got %q", body)
	}
}

func TestMetricsRouteDisabled(t *testing.T) {
	ts := httptest.NewServer(NewHandler(echo))
	defer ts.Close()

	resp, err := http.Get(ts.URL + MetricsPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestSendWithoutConnect(t *testing.T) {
	if _, err := NewHttpClientTransport().Send([]byte("x")); err == nil {
		t.Errorf("Expected an error from an unconnected transport")
	}
}

func TestRequestLogging(t *testing.T) {
	ts := httptest.NewServer(NewHandler(echo, WithRequestLogging()))
	defer ts.Close()

	resp, err := http.Post(ts.URL+StorePath, "application/octet-stream", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
