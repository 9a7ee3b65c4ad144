package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/repository"
)

const (
	reportPageSize     = 500
	reportSummarySheet = "Summary"
)

var reportHeader = []interface{}{
	"Kind", "ID", "Status", "Payment state", "Method", "Reference",
	"Amount", "Currency", "Owner", "Counterparty", "Paid at", "Created at", "Updated at",
}

// ReconciliationReport выгружает все платёжные сущности в XLSX:
// по листу на вид и сводка по (вид, состояние оплаты).
func (s *Engine) ReconciliationReport(ctx context.Context, actor domain.Actor) (*bytes.Buffer, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}

	f := excelize.NewFile()
	defer f.Close()

	type key struct {
		kind    domain.Kind
		payment domain.PaymentState
	}
	counts := make(map[key]int)

	for _, kind := range domain.Kinds {
		sheet := string(kind)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("ошибка создания листа %s: %w", sheet, err)
		}
		if err := f.SetSheetRow(sheet, "A1", &reportHeader); err != nil {
			return nil, err
		}

		row := 2
		for offset := 0; ; offset += reportPageSize {
			page, total, err := s.repo.List(ctx, repository.ListFilter{Kind: kind, Offset: offset, Limit: reportPageSize})
			if err != nil {
				return nil, fmt.Errorf("ошибка чтения %s: %w", kind, err)
			}
			for _, e := range page {
				cell, _ := excelize.CoordinatesToCellName(1, row)
				values := reportRow(e)
				if err := f.SetSheetRow(sheet, cell, &values); err != nil {
					return nil, err
				}
				counts[key{e.Kind, e.PaymentState}]++
				row++
			}
			if len(page) == 0 || int64(offset+len(page)) >= total {
				break
			}
		}
	}

	if err := f.SetSheetName("Sheet1", reportSummarySheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(reportSummarySheet, "A1", &[]interface{}{"Kind", "Payment state", "Count"}); err != nil {
		return nil, err
	}
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].payment < keys[j].payment
	})
	for i, k := range keys {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(reportSummarySheet, cell, &[]interface{}{string(k.kind), string(k.payment), counts[k]}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка записи отчёта: %w", err)
	}
	logger.Ctx(ctx).Info().Int("groups", len(keys)).Int("bytes", buf.Len()).Msg("Отчёт сверки сформирован")
	return buf, nil
}

func reportRow(e *domain.PayableEntity) []interface{} {
	ref := ""
	if e.PaymentReference != nil {
		ref = *e.PaymentReference
	}
	return []interface{}{
		string(e.Kind), e.ID, string(e.Status), string(e.PaymentState), string(e.PaymentMethod), ref,
		e.Amount.StringFixed(2), e.Currency, e.OwnerID, e.CounterpartyID,
		formatTime(e.PaidAt), e.CreatedAt.UTC().Format(time.RFC3339), e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
