package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/e2b-dev/infra/packages/memdev/internal/api"
	"github.com/e2b-dev/infra/packages/memdev/internal/host"
	"github.com/e2b-dev/infra/packages/memdev/pkg/memdev"
)

func main() {
	addr := flag.String("addr", "http://localhost:5010", "memdev service address")
	clearDevice := flag.Bool("clear", false, "zero the device after dumping it")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &dumpClient{addr: *addr, http: &http.Client{}}

	err := dump(ctx, client, os.Stdout, *clearDevice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to dump device: %v\n", err)

		os.Exit(1)
	}
}

func dump(ctx context.Context, client *dumpClient, out io.Writer, clearDevice bool) error {
	var info host.Info
	if err := client.do(ctx, http.MethodGet, "/device", nil, http.StatusOK, &info); err != nil {
		return fmt.Errorf("error getting device info: %w", err)
	}

	var session api.Session
	if err := client.do(ctx, http.MethodPost, "/sessions", nil, http.StatusCreated, &session); err != nil {
		return fmt.Errorf("error opening session: %w", err)
	}

	defer func() {
		_ = client.do(context.WithoutCancel(ctx), http.MethodDelete, "/sessions/"+session.ID, nil, http.StatusNoContent, nil)
	}()

	var data bytes.Buffer
	path := fmt.Sprintf("/sessions/%s/data?length=%d", session.ID, info.Capacity)
	if err := client.do(ctx, http.MethodGet, path, nil, http.StatusOK, &data); err != nil {
		return fmt.Errorf("error reading device: %w", err)
	}

	fmt.Fprint(out, hex.Dump(data.Bytes()))
	fmt.Fprintf(out, "read %s of %s, %d session(s) open, %d dirty block(s) of %s\n",
		humanize.IBytes(uint64(data.Len())),
		humanize.IBytes(uint64(info.Capacity)),
		info.Sessions,
		len(info.DirtyBlocks),
		humanize.IBytes(uint64(info.BlockSize)),
	)

	if clearDevice {
		body, err := json.Marshal(api.ControlRequest{Code: ptr(uint32(memdev.ControlClear))})
		if err != nil {
			return err
		}

		if err := client.do(ctx, http.MethodPost, "/control", bytes.NewReader(body), http.StatusNoContent, nil); err != nil {
			return fmt.Errorf("error clearing device: %w", err)
		}

		fmt.Fprintln(out, "device is set to zero")
	}

	return nil
}

type dumpClient struct {
	addr string
	http *http.Client
}

// do sends a request and decodes the response into out: raw bytes for *bytes.Buffer, JSON otherwise.
func (c *dumpClient) do(ctx context.Context, method, path string, body io.Reader, expected int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, body)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		var apiErr api.Error
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)

		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErr.Message)
	}

	switch v := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		_, err = io.Copy(v, resp.Body)

		return err
	default:
		return json.NewDecoder(resp.Body).Decode(v)
	}
}

func ptr[T any](v T) *T {
	return &v
}
