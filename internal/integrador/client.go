package integrador

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// FieldSessao lets callers force the request identifier instead of drawing
// a new session number. The value must be a number inside the terminal's
// session range.
const FieldSessao = "numero_sessao"

// Numerador issues request identifiers. *sessao.Allocator satisfies it.
type Numerador interface {
	NextContext(ctx context.Context) (int, error)
}

// ErrorRecorder receives failed commands. *journal.Errors satisfies it.
type ErrorRecorder interface {
	Record(ctx context.Context, e journal.ErrorEntry) error
}

// Client issues commands to the Integrador for one terminal and waits for
// the correlated response.
type Client struct {
	Caixa                int
	InputDir             string
	ChaveAcessoValidador string
	Timeout              time.Duration // 0 waits until ctx ends

	Numerador Numerador
	Renderer  Renderer // defaults to the embedded templates
	Channel   *Channel
	Errors    ErrorRecorder // optional
	Logger    *slog.Logger
}

// Command renders template with fields, writes the request to InputDir and
// waits for the response carrying the same identifier. On failure the
// request file is removed and the failure recorded in Errors.
func (c *Client) Command(ctx context.Context, template string, fields Fields) (Response, error) {
	logger := c.logger()
	renderer := c.Renderer
	if renderer == nil {
		renderer = defaultRenderer()
	}
	name, ok := renderer.Lookup(template)
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownCommand, template)
	}
	if c.Channel == nil {
		return Response{}, fmt.Errorf("integrador: %s: no response channel", name)
	}

	id, err := c.identifier(ctx, fields)
	if err != nil {
		return Response{}, fmt.Errorf("integrador: %s: %w", name, err)
	}

	data := Fields{"chave_acesso_validador": c.ChaveAcessoValidador}
	for k, v := range fields {
		data[k] = v
	}
	data["numero_identificador"] = id

	reqPath := filepath.Join(c.InputDir, id+"-"+strings.ToLower(name))
	pending := c.Channel.Expect(id)
	pending.RequestPath = reqPath

	var buf bytes.Buffer
	if err := renderer.Render(&buf, name, data); err != nil {
		pending.Cancel()
		return Response{}, c.fail(ctx, name, id, "", err)
	}
	if err := writeRequest(reqPath, buf.Bytes()); err != nil {
		pending.Cancel()
		return Response{}, c.fail(ctx, name, id, "", err)
	}
	logger.Info("integrador request written", "comando", name, "id", id, "path", reqPath)

	waitCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	resp, err := pending.Wait(waitCtx)
	if err != nil {
		return Response{}, c.fail(ctx, name, id, reqPath, err)
	}
	logger.Info("integrador response", "comando", name, "id", id, "path", resp.SourcePath)
	return resp, nil
}

func (c *Client) identifier(ctx context.Context, fields Fields) (string, error) {
	if raw := strings.TrimSpace(fields[FieldSessao]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
		}
		faixa, err := caixa.RangeFor(c.Caixa)
		if err != nil {
			return "", err
		}
		if !faixa.Contains(n) {
			return "", fmt.Errorf("%w: %d outside %s", ErrInvalidIdentifier, n, faixa)
		}
		return strconv.Itoa(n), nil
	}
	if c.Numerador == nil {
		return "", errors.New("no session numerador")
	}
	n, err := c.Numerador.NextContext(ctx)
	if n == 0 {
		return "", err
	}
	if err != nil {
		c.logger().Warn("session number issued without persisted history", "numero_sessao", n, "error", err)
	}
	return strconv.Itoa(n), nil
}

// fail removes the orphaned request, records the failure and returns err
// wrapped with the command name.
func (c *Client) fail(ctx context.Context, name, id, reqPath string, err error) error {
	if reqPath != "" {
		if rmErr := os.Remove(reqPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger().Warn("orphaned integrador request not removed", "path", reqPath, "error", rmErr)
		}
	}
	level := slog.LevelError
	if errors.Is(err, ErrCorrelationTimeout) {
		level = slog.LevelWarn
	}
	c.logger().Log(ctx, level, "integrador command failed", "comando", name, "id", id, "error", err)

	if c.Errors != nil {
		entry := journal.NewErrorEntry(c.Caixa, strings.TrimSuffix(name, ".xml"), err, map[string]any{
			"numero_identificador": id,
			"arquivo":              reqPath,
		})
		// the caller's ctx may be the one that just expired
		if recErr := c.Errors.Record(context.WithoutCancel(ctx), entry); recErr != nil {
			logging.Critical(c.logger(), "error journal not written", "error", recErr)
		}
	}
	return fmt.Errorf("integrador: %s: %w", name, err)
}

// SweepOrphans removes request files and temporaries in InputDir older than
// olderThan that no armed request refers to. It returns the number removed.
func (c *Client) SweepOrphans(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(c.InputDir)
	if err != nil {
		return 0, fmt.Errorf("integrador: sweep %s: %w", c.InputDir, err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id, _, ok := strings.Cut(name, "-")
		if !ok {
			continue
		}
		if c.Channel != nil && c.Channel.Armed(id) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.InputDir, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("integrador: sweep %s: %w", name, err)
		}
		c.logger().Info("orphaned integrador request removed", "path", name)
		removed++
	}
	return removed, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger.With("caixa", c.Caixa)
}

// writeRequest publishes data at path through a temporary file so the
// Integrador never picks up a partial request.
func writeRequest(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create input dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write request: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize request: %w", err)
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultTmpl *TemplateRenderer
)

func defaultRenderer() *TemplateRenderer {
	defaultOnce.Do(func() { defaultTmpl = MustTemplateRenderer() })
	return defaultTmpl
}
