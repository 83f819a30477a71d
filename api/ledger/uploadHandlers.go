package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"

	"ConciliaMayorista/api"
	"ConciliaMayorista/internal/checksum"
	"ConciliaMayorista/internal/config"
	"ConciliaMayorista/internal/validation"
)

// Helper: get file extension
func getFileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// sheetRows is one partition (workbook sheet) worth of raw rows, header
// included.
type sheetRows struct {
	Name string
	Rows [][]string
}

// parseIncomeFile turns an uploaded ledger file into per-sheet raw rows.
// Workbooks keep one sheet per account partition; csv files carry a single
// unnamed partition the caller labels.
func parseIncomeFile(file io.ReadSeeker, ext string) ([]sheetRows, error) {
	switch ext {
	case ".csv":
		r := csv.NewReader(file)
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, err
		}
		return []sheetRows{{Rows: rows}}, nil
	case ".xlsx":
		f, err := excelize.OpenReader(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var out []sheetRows
		for _, sheet := range f.GetSheetList() {
			rows, err := f.GetRows(sheet)
			if err != nil {
				return nil, err
			}
			out = append(out, sheetRows{Name: sheet, Rows: rows})
		}
		return out, nil
	case ".xls":
		wb, err := xls.OpenReader(file, "utf-16")
		if err != nil {
			return nil, err
		}
		var out []sheetRows
		for i := 0; i < wb.NumSheets(); i++ {
			sheet := wb.GetSheet(i)
			if sheet == nil {
				continue
			}
			var rows [][]string
			for ri := 0; ri <= int(sheet.MaxRow); ri++ {
				row := sheet.Row(ri)
				if row == nil {
					continue
				}
				var cells []string
				for ci := 0; ci <= row.LastCol(); ci++ {
					cells = append(cells, row.Col(ci))
				}
				rows = append(rows, cells)
			}
			out = append(out, sheetRows{Name: sheet.Name, Rows: rows})
		}
		return out, nil
	}
	return nil, errors.New("unsupported file type")
}

// UploadIncomeWorkbook ingests the reseller workbook: every sheet is staged
// under a batch id and then promoted to the canonical incomes table.
// Re-uploading is safe — immutable fields never change on conflict and
// invoice numbers already written back are never cleared.
func UploadIncomeWorkbook(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
			return
		}
		account := r.FormValue("account")
		if account == "" {
			http.Error(w, "account required in form", http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			http.Error(w, "No files uploaded", http.StatusBadRequest)
			return
		}

		registry := checksum.NewRegistry(pgxPool)
		results := make([]map[string]interface{}, 0, len(files))
		for _, fileHeader := range files {
			file, err := fileHeader.Open()
			if err != nil {
				http.Error(w, "Failed to open file: "+fileHeader.Filename, http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				http.Error(w, "Failed to read file: "+fileHeader.Filename, http.StatusBadRequest)
				return
			}

			digest := checksum.Digest(data)
			seen, err := registry.AlreadyIngested(ctx, account, digest)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if seen {
				log.Printf("[Ledger] skipping %s for %s: identical file already ingested", fileHeader.Filename, account)
				results = append(results, map[string]interface{}{
					"file":      fileHeader.Filename,
					"duplicate": true,
				})
				continue
			}

			ext := getFileExt(fileHeader.Filename)
			sheets, err := parseIncomeFile(bytes.NewReader(data), ext)
			if err != nil {
				http.Error(w, "Invalid file "+fileHeader.Filename+": "+err.Error(), http.StatusBadRequest)
				return
			}

			batchID := uuid.New().String()
			staged := 0
			for _, sheet := range sheets {
				if len(sheet.Rows) < 2 {
					continue
				}
				partition := sheet.Name
				if partition == "" {
					partition = account
				}
				if err := validation.CheckLedgerHeader(sheet.Rows[0]); err != nil {
					http.Error(w, fmt.Sprintf("Invalid file %s, sheet %s: %v", fileHeader.Filename, partition, err),
						http.StatusBadRequest)
					return
				}
				n, err := stageSheet(ctx, pgxPool, batchID, account, partition, sheet.Rows)
				if err != nil {
					api.RespondWithError(w, http.StatusInternalServerError,
						fmt.Sprintf("failed to stage %s (%s): %v", fileHeader.Filename, partition, err))
					return
				}
				staged += n
			}

			summary, err := ProcessStagingIncomes(ctx, pgxPool, batchID)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError,
					fmt.Sprintf("failed to process %s: %v", fileHeader.Filename, err))
				return
			}
			if err := registry.Record(ctx, account, digest, fileHeader.Filename); err != nil {
				// A re-upload of this file will be re-processed; the upsert
				// makes that harmless.
				log.Printf("[Ledger][WARN] %v", err)
			}
			log.Printf("[Ledger] ingested %s for %s: %d staged, %d upserted, %d skipped",
				fileHeader.Filename, account, staged, summary.Upserted, summary.Skipped)
			results = append(results, map[string]interface{}{
				"file":     fileHeader.Filename,
				"batch_id": batchID,
				"staged":   staged,
				"upserted": summary.Upserted,
				"skipped":  summary.Skipped,
			})
		}
		api.RespondWithPayload(w, true, "", results)
	}
}

// stageSheet copies one sheet's data rows into the staging table as raw
// header→value payloads.
func stageSheet(ctx context.Context, pool *pgxpool.Pool, batchID, account, partition string, rows [][]string) (int, error) {
	if len(rows) < 2 {
		return 0, nil
	}
	header := rows[0]
	copyRows := make([][]interface{}, 0, len(rows)-1)
	for _, row := range rows[1:] {
		payload := make(map[string]string, len(header))
		empty := true
		for i, h := range header {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			if v != "" {
				empty = false
			}
			payload[strings.TrimSpace(h)] = v
		}
		if empty {
			continue
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		copyRows = append(copyRows, []interface{}{batchID, account, partition, raw})
	}
	if len(copyRows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx,
		pgx.Identifier{"recon", "staging_incomes"},
		[]string{"batch_id", "account", "source_partition", "raw_payload"},
		pgx.CopyFromRows(copyRows))
	if err != nil {
		return 0, fmt.Errorf("staging copy failed: %w", err)
	}
	return int(n), nil
}

type IngestSummary struct {
	Upserted int
	Skipped  int
}

// ProcessStagingIncomes promotes one staged batch into recon.incomes.
// Rows without an income id are skipped and counted; amount and reference
// fields of existing records are never modified, and an invoice number the
// engine already wrote back is never cleared by a stale workbook upload.
func ProcessStagingIncomes(ctx context.Context, pool *pgxpool.Pool, batchID string) (IngestSummary, error) {
	rows, err := pool.Query(ctx, `
		SELECT account, source_partition, raw_payload
		FROM recon.staging_incomes
		WHERE batch_id = $1 AND status = 'pending'`, batchID)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("failed to load staging rows: %w", err)
	}

	type stagedRow struct {
		account   string
		partition string
		payload   map[string]string
	}
	var staged []stagedRow
	for rows.Next() {
		var sr stagedRow
		var raw json.RawMessage
		if err := rows.Scan(&sr.account, &sr.partition, &raw); err != nil {
			rows.Close()
			return IngestSummary{}, fmt.Errorf("failed to scan staging row: %w", err)
		}
		if err := json.Unmarshal(raw, &sr.payload); err != nil {
			rows.Close()
			return IngestSummary{}, fmt.Errorf("failed to unmarshal staging payload: %w", err)
		}
		staged = append(staged, sr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return IngestSummary{}, err
	}

	summary := IngestSummary{}
	now := time.Now()
	for _, sr := range staged {
		incomeID := sr.payload[config.HeaderIncomeID]
		if incomeID == "" {
			summary.Skipped++
			continue
		}
		tipo := sr.payload[config.HeaderTipo]
		monto, ok := parseAmount(sr.payload[config.HeaderMonto])
		if !ok {
			summary.Skipped++
			continue
		}
		fecha := parseFecha(sr.payload[config.HeaderFecha], now)

		_, err := pool.Exec(ctx, `
			INSERT INTO recon.incomes
				(income_id, account, tipo, client_id, invoice_number, gross_amount,
				 reference_text, source_partition, fecha, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (income_id) DO UPDATE SET
				client_id = EXCLUDED.client_id,
				uploaded_at = EXCLUDED.uploaded_at,
				invoice_number = CASE
					WHEN recon.incomes.invoice_number IS NULL OR recon.incomes.invoice_number = ''
					THEN EXCLUDED.invoice_number
					ELSE recon.incomes.invoice_number
				END`,
			incomeID, sr.account, tipo,
			sr.payload[config.HeaderClientID], sr.payload[config.HeaderInvoiceNo],
			monto, sr.payload[config.HeaderMotivo], sr.partition, fecha, now)
		if err != nil {
			return summary, fmt.Errorf("failed to upsert income %s: %w", incomeID, err)
		}
		summary.Upserted++
	}

	if _, err := pool.Exec(ctx,
		`UPDATE recon.staging_incomes SET status = 'processed' WHERE batch_id = $1`, batchID); err != nil {
		return summary, fmt.Errorf("failed to mark batch %s processed: %w", batchID, err)
	}
	return summary, nil
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", ""))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseFecha(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05", "1/2/06 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
