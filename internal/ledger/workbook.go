package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ConciliaMayorista/internal/billing"
	"ConciliaMayorista/internal/config"
)

// BlobClient is the blob-store boundary the workbook sync depends on.
type BlobClient interface {
	Download(ctx context.Context, objectPath string) ([]byte, error)
	Upload(ctx context.Context, objectPath string, data []byte) error
}

// SupabaseBlob talks to a Supabase-style storage bucket over its REST
// object API.
type SupabaseBlob struct {
	baseURL string
	bucket  string
	apiKey  string
	httpc   *http.Client
}

// NewSupabaseBlobFromEnv builds the blob client from SUPABASE_URL,
// SUPABASE_BUCKET and SUPABASE_SERVICE_ROLE_KEY (or SUPABASE_ANON_KEY).
func NewSupabaseBlobFromEnv() (*SupabaseBlob, error) {
	baseURL := strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	bucket := os.Getenv("SUPABASE_BUCKET")
	apiKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("SUPABASE_ANON_KEY")
	}
	if baseURL == "" || bucket == "" || apiKey == "" {
		return nil, fmt.Errorf("blob store configuration missing; set SUPABASE_URL, SUPABASE_BUCKET and at least one of SUPABASE_SERVICE_ROLE_KEY or SUPABASE_ANON_KEY")
	}
	return &SupabaseBlob{
		baseURL: baseURL,
		bucket:  bucket,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (b *SupabaseBlob) objectURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", b.baseURL, b.bucket, url.PathEscape(objectPath))
}

func (b *SupabaseBlob) Download(ctx context.Context, objectPath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.objectURL(objectPath), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", b.apiKey)
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("blob download failed: %d %s", resp.StatusCode, string(msg))
	}
	return io.ReadAll(resp.Body)
}

func (b *SupabaseBlob) Upload(ctx context.Context, objectPath string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.objectURL(objectPath), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", b.apiKey)
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	req.Header.Set("x-upsert", "true")
	resp, err := b.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("blob upload request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("blob upload failed: %d %s", resp.StatusCode, string(msg))
	}
	return nil
}

// Workbook mirrors accepted invoice numbers into the shared reseller
// workbook. One sheet per account partition; rows are matched by the income
// id column. The canonical Postgres row is the record of truth — the
// workbook is the copy the resellers look at.
type Workbook struct {
	Blob       BlobClient
	RemotePath string
}

// ApplyAssignments downloads the workbook, writes each assignment's number
// into the Factura column of its source sheet and re-uploads. A row already
// carrying the same number is skipped, so re-running after a crash is safe.
// Returns the number of cells actually written.
func (w *Workbook) ApplyAssignments(ctx context.Context, assignments []billing.Assignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	raw, err := w.Blob.Download(ctx, w.RemotePath)
	if err != nil {
		return 0, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("failed to open workbook %s: %w", w.RemotePath, err)
	}
	defer f.Close()

	bySheet := make(map[string][]billing.Assignment)
	for _, a := range assignments {
		bySheet[a.SourcePartition] = append(bySheet[a.SourcePartition], a)
	}

	applied := 0
	for sheet, group := range bySheet {
		n, err := applyToSheet(f, sheet, group)
		if err != nil {
			return applied, err
		}
		applied += n
	}
	if applied == 0 {
		return 0, nil
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return applied, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	if err := w.Blob.Upload(ctx, w.RemotePath, buf.Bytes()); err != nil {
		return applied, err
	}
	return applied, nil
}

func applyToSheet(f *excelize.File, sheet string, group []billing.Assignment) (int, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("sheet %q not found in workbook: %w", sheet, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	idCol, facturaCol := -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(h) {
		case config.HeaderIncomeID:
			idCol = i
		case config.HeaderInvoiceNo:
			facturaCol = i
		}
	}
	if idCol < 0 || facturaCol < 0 {
		return 0, fmt.Errorf("sheet %q is missing the %s or %s column", sheet, config.HeaderIncomeID, config.HeaderInvoiceNo)
	}

	byIncome := make(map[string]string, len(group))
	for _, a := range group {
		byIncome[a.IncomeID] = a.InvoiceNumber
	}

	applied := 0
	for r := 1; r < len(rows); r++ {
		row := rows[r]
		if idCol >= len(row) {
			continue
		}
		number, ok := byIncome[strings.TrimSpace(row[idCol])]
		if !ok {
			continue
		}
		current := ""
		if facturaCol < len(row) {
			current = strings.TrimSpace(row[facturaCol])
		}
		if current == number {
			continue
		}
		if current != "" {
			log.Printf("[Ledger][WARN] sheet %s row %d already carries invoice %s, leaving it", sheet, r+1, current)
			continue
		}
		cell, err := excelize.CoordinatesToCellName(facturaCol+1, r+1)
		if err != nil {
			return applied, err
		}
		if err := f.SetCellStr(sheet, cell, number); err != nil {
			return applied, fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
		}
		applied++
	}
	return applied, nil
}
