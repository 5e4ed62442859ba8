package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

const statementName = "estado_de_cuenta.csv"

// Item links a payment to the proof file stored in the bundle.
type Item struct {
	Payment  *payment.Payment
	FileName string // empty when the payment has no proof
}

// Bundle writes a zip with the statement CSV and every proof document under
// comprobantes/. Proofs of rejected payments are left out.
func (s *Service) Bundle(ctx context.Context, w io.Writer, st *Statement) ([]Item, error) {
	zw := zip.NewWriter(w)

	f, err := zw.Create(statementName)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", statementName, err)
	}

	if err := WriteCSV(f, st); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(st.Payments))
	taken := map[string]bool{statementName: true}

	for _, p := range st.Payments {
		item := Item{Payment: p}

		if p.ProofURL != "" && p.Counts() {
			name, body, err := s.downloadProof(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("downloading proof for payment %s: %w", p.ID, err)
			}

			name = uniqueName(taken, path.Join("comprobantes", name))

			f, err := zw.Create(name)
			if err != nil {
				return nil, fmt.Errorf("creating %s: %w", name, err)
			}

			if _, err := f.Write(body); err != nil {
				return nil, fmt.Errorf("writing %s: %w", name, err)
			}

			item.FileName = name
		}

		items = append(items, item)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing bundle: %w", err)
	}

	return items, nil
}

func (s *Service) downloadProof(ctx context.Context, p *payment.Payment) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProofURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("creating request: %w", err)
	}

	if s.proofToken != "" {
		req.Header.Set("Authorization", "Token "+s.proofToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status code %d for url %s", resp.StatusCode, p.ProofURL)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return "", nil, fmt.Errorf("reading body: %w", err)
	}

	return proofFilename(resp, p), buf.Bytes(), nil
}

// proofFilename prefers the server's Content-Disposition name and otherwise
// builds YYYYMMDD_<reference>.<ext> from the payment.
func proofFilename(resp *http.Response, p *payment.Payment) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if filename := params["filename"]; filename != "" {
				return strings.ReplaceAll(path.Base(filename), " ", "_")
			}
		}
	}

	ext := ".pdf"

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			ext = exts[0]
		}
	}

	label := p.Reference
	if label == "" {
		label = p.ID.String()
	}

	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}

		return '_'
	}, label)

	return fmt.Sprintf("%s_%s%s", p.PaidOn.Format("20060102"), safe, ext)
}

func uniqueName(taken map[string]bool, name string) string {
	candidate := name
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 2; taken[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}

	taken[candidate] = true

	return candidate
}
