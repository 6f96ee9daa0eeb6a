package telemetry

import (
	"errors"
	"strings"

	"github.com/seiixin/gunwadex/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// SQL operations that get a span
const (
	opSelect = "SELECT"
	opInsert = "INSERT"
	opUpdate = "UPDATE"
	opDelete = "DELETE"
	opRaw    = "RAW"
)

const (
	dbSpanKey       = "telemetry:db_span"
	maxStatementLen = 500
)

// kindByTable maps the content tables back to their target kind so DB spans
// can be joined with the service spans carrying target.type
var kindByTable = func() map[string]models.TargetKind {
	m := make(map[string]models.TargetKind)
	for _, k := range []models.TargetKind{models.TargetStory, models.TargetEpisode, models.TargetArticle, models.TargetComment} {
		m[k.TableName()] = k
	}
	return m
}()

// GORMTracingPlugin returns a GORM plugin that opens a span around every
// statement. system is the db.system attribute ("postgresql" or "sqlite").
func GORMTracingPlugin(system string) gorm.Plugin {
	return &gormTracer{tracer: otel.Tracer("gunwadex/gorm"), system: system}
}

type gormTracer struct {
	tracer trace.Tracer
	system string
}

func (g *gormTracer) Name() string { return "gunwadex:db-tracing" }

func (g *gormTracer) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("gunwadex:trace_select", g.start(opSelect)),
		cb.Query().After("gorm:query").Register("gunwadex:end_select", g.end),
		cb.Create().Before("gorm:create").Register("gunwadex:trace_insert", g.start(opInsert)),
		cb.Create().After("gorm:create").Register("gunwadex:end_insert", g.end),
		cb.Update().Before("gorm:update").Register("gunwadex:trace_update", g.start(opUpdate)),
		cb.Update().After("gorm:update").Register("gunwadex:end_update", g.end),
		cb.Delete().Before("gorm:delete").Register("gunwadex:trace_delete", g.start(opDelete)),
		cb.Delete().After("gorm:delete").Register("gunwadex:end_delete", g.end),
		cb.Raw().Before("gorm:raw").Register("gunwadex:trace_raw", g.start(opRaw)),
		cb.Raw().After("gorm:raw").Register("gunwadex:end_raw", g.end),
	)
}

func (g *gormTracer) start(op string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			return
		}

		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		attrs := []attribute.KeyValue{
			attribute.String("db.system", g.system),
			attribute.String("db.sql.table", table),
			attribute.String("db.operation", op),
		}
		if kind, ok := kindByTable[table]; ok {
			attrs = append(attrs, attribute.String("target.type", string(kind)))
		}

		_, span := g.tracer.Start(ctx, "db."+strings.ToLower(op)+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
		tx.InstanceSet(dbSpanKey, span)
	}
}

func (g *gormTracer) end(tx *gorm.DB) {
	v, ok := tx.InstanceGet(dbSpanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if stmt := tx.Statement.SQL.String(); stmt != "" {
		span.SetAttributes(attribute.String("db.statement", truncateStatement(stmt)))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.RowsAffected))

	switch {
	case tx.Error == nil:
	case errors.Is(tx.Error, gorm.ErrRecordNotFound):
		// lookups that miss become 404s upstream
		span.SetAttributes(attribute.Bool("db.not_found", true))
	default:
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}
}

func truncateStatement(stmt string) string {
	if len(stmt) <= maxStatementLen {
		return stmt
	}
	return stmt[:maxStatementLen] + "... (truncated)"
}
