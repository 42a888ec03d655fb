// Package builtin registers the natively implemented business tools: stock
// lookups, sales reporting, and overdue invoice listings over the store.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tessara/gemini-assistant/internal/provider/models"
	"github.com/tessara/gemini-assistant/internal/store"
	"github.com/tessara/gemini-assistant/internal/tool"
	"gorm.io/gorm"
)

// RegisterAll registers every builtin tool with the registry.
func RegisterAll(registry *tool.Registry, st *store.Store) error {
	tools := []struct {
		def     tool.Definition
		handler tool.Handler
	}{
		{checkStockLevelsDef, checkStockLevels(st)},
		{generateSalesReportDef, generateSalesReport(st)},
		{listOverdueInvoicesDef, listOverdueInvoices(st)},
	}
	for _, t := range tools {
		if err := registry.Register(t.def, t.handler); err != nil {
			return fmt.Errorf("registering builtin tool %q: %w", t.def.Name, err)
		}
	}
	return nil
}

var checkStockLevelsDef = tool.Definition{
	Name:        "check_stock_levels",
	Description: "Fetches the actual stock quantity for a given item code across all warehouses.",
	Enabled:     true,
	Parameters: &models.ParameterSchema{
		Type: "object",
		Properties: map[string]models.PropertySchema{
			"item_code": {
				Type:        "string",
				Description: "The item code to look up",
			},
		},
		Required: []string{"item_code"},
	},
}

type checkStockArgs struct {
	ItemCode string `json:"item_code"`
}

func checkStockLevels(st *store.Store) tool.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		req, err := tool.DecodeArgs[checkStockArgs](args)
		if err != nil {
			return nil, err
		}
		if req.ItemCode == "" {
			return nil, fmt.Errorf("item code is required")
		}

		var levels []store.StockLevel
		if err := st.DB().WithContext(ctx).
			Where("item_code = ?", req.ItemCode).
			Find(&levels).Error; err != nil {
			return nil, fmt.Errorf("looking up stock: %w", err)
		}
		if len(levels) == 0 {
			return nil, fmt.Errorf("item code %q not found", req.ItemCode)
		}

		var total float64
		for _, l := range levels {
			total += l.Qty
		}

		return map[string]any{
			"item_code":       req.ItemCode,
			"actual_quantity": total,
			"message":         fmt.Sprintf("Stock level for item %q is %g", req.ItemCode, total),
		}, nil
	}
}

var generateSalesReportDef = tool.Definition{
	Name:        "generate_sales_report",
	Description: "Generates a summary sales report for invoices posted within a date range. Defaults to the last 30 days.",
	Enabled:     true,
	Parameters: &models.ParameterSchema{
		Type: "object",
		Properties: map[string]models.PropertySchema{
			"start_date": {
				Type:        "string",
				Description: "Range start, YYYY-MM-DD",
			},
			"end_date": {
				Type:        "string",
				Description: "Range end, YYYY-MM-DD",
			},
		},
	},
}

type salesReportArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func generateSalesReport(st *store.Store) tool.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		req, err := tool.DecodeArgs[salesReportArgs](args)
		if err != nil {
			return nil, err
		}

		end := time.Now()
		if req.EndDate != "" {
			end, err = time.Parse("2006-01-02", req.EndDate)
			if err != nil {
				return nil, fmt.Errorf("invalid end_date: %w", err)
			}
		}
		start := end.AddDate(0, 0, -30)
		if req.StartDate != "" {
			start, err = time.Parse("2006-01-02", req.StartDate)
			if err != nil {
				return nil, fmt.Errorf("invalid start_date: %w", err)
			}
		}

		var invoices []store.Invoice
		if err := st.DB().WithContext(ctx).
			Where("posting_date BETWEEN ? AND ?", start, end).
			Find(&invoices).Error; err != nil {
			return nil, fmt.Errorf("querying invoices: %w", err)
		}

		if len(invoices) == 0 {
			return map[string]any{
				"message": fmt.Sprintf("No invoices found between %s and %s.",
					start.Format("2006-01-02"), end.Format("2006-01-02")),
			}, nil
		}

		var total float64
		for _, inv := range invoices {
			total += inv.Total
		}

		return map[string]any{
			"start_date":         start.Format("2006-01-02"),
			"end_date":           end.Format("2006-01-02"),
			"total_orders":       len(invoices),
			"total_sales_amount": total,
			"message": fmt.Sprintf("Found %d invoices totaling %.2f between %s and %s.",
				len(invoices), total, start.Format("2006-01-02"), end.Format("2006-01-02")),
		}, nil
	}
}

var listOverdueInvoicesDef = tool.Definition{
	Name:        "list_overdue_invoices",
	Description: "Lists unpaid invoices that are past their due date, optionally filtered by customer.",
	Enabled:     true,
	Parameters: &models.ParameterSchema{
		Type: "object",
		Properties: map[string]models.PropertySchema{
			"customer": {
				Type:        "string",
				Description: "Restrict the listing to one customer",
			},
		},
	},
}

type overdueArgs struct {
	Customer string `json:"customer"`
}

func listOverdueInvoices(st *store.Store) tool.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		req, err := tool.DecodeArgs[overdueArgs](args)
		if err != nil {
			return nil, err
		}

		q := st.DB().WithContext(ctx).
			Where("status NOT IN ?", []string{"Paid", "Cancelled"}).
			Where("due_date < ?", time.Now())
		if req.Customer != "" {
			var exists store.Invoice
			err := st.DB().WithContext(ctx).Where("customer = ?", req.Customer).First(&exists).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("customer %q not found", req.Customer)
			} else if err != nil {
				return nil, err
			}
			q = q.Where("customer = ?", req.Customer)
		}

		var invoices []store.Invoice
		if err := q.Order("due_date asc").Find(&invoices).Error; err != nil {
			return nil, fmt.Errorf("querying overdue invoices: %w", err)
		}

		if len(invoices) == 0 {
			msg := "No overdue invoices found."
			if req.Customer != "" {
				msg = fmt.Sprintf("No overdue invoices found for customer %q.", req.Customer)
			}
			return map[string]any{"message": msg}, nil
		}

		var outstanding float64
		rows := make([]map[string]any, 0, len(invoices))
		for _, inv := range invoices {
			outstanding += inv.Outstanding
			rows = append(rows, map[string]any{
				"name":               inv.ID,
				"customer":           inv.Customer,
				"due_date":           inv.DueDate.Format("2006-01-02"),
				"outstanding_amount": inv.Outstanding,
			})
		}

		return map[string]any{
			"count":             len(invoices),
			"total_outstanding": outstanding,
			"invoices":          rows,
			"message": fmt.Sprintf("Found %d overdue invoices totaling %.2f outstanding.",
				len(invoices), outstanding),
		}, nil
	}
}
