// Package services – Orchestrator
//
// This file implements the orchestrator, the component that turns one
// student query into a conversational answer, an optional compiled PDF, and
// an optional contribution to the knowledge base. It sequences:
//
//	context build → generation → document decision → document pipeline
//	→ ingestion decision → persistence
//
// Failure policy: context and generation failures abort the run and surface
// to the caller. Once an answer exists the run never aborts — document and
// ingestion failures are logged and degrade the result (no document URL),
// and a persistence failure is surfaced alongside the computed answer.
//
// Observability: public methods are OpenTelemetry-instrumented; downstream
// failures are logged with the service name, payload size, and error.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nexus-reussite/aria-backend/internal/clients/document"
	"github.com/nexus-reussite/aria-backend/internal/clients/generation"
	"github.com/nexus-reussite/aria-backend/internal/clients/ingestion"
	"github.com/nexus-reussite/aria-backend/internal/latex"
	"github.com/nexus-reussite/aria-backend/internal/repo"
)

// Generator is the contract of the text-generation service adapter.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// DocumentCompiler is the contract of the PDF service adapter.
type DocumentCompiler interface {
	Compile(ctx context.Context, job document.Job) (*document.Result, error)
}

// Ingestor is the contract of the knowledge-base service adapter.
type Ingestor interface {
	Ingest(ctx context.Context, rec ingestion.Record) error
}

// QueryResult is what one orchestration run yields. Response is always
// non-empty on success; DocumentURL is empty when no document was wanted or
// the document pipeline failed. DocumentWanted distinguishes the two for
// observability.
type QueryResult struct {
	Response           string
	DocumentURL        string
	DocumentWanted     bool
	ConversationID     string
	AssistantMessageID string
}

// footerBrand is printed on every generated document.
const footerBrand = "ARIA"

// minEnrichRunes is the answer length under which the fallback document body
// is padded with a generic outline, so very short answers still produce a
// useful revision sheet.
const minEnrichRunes = 200

// Orchestrator sequences the tutoring pipeline for one query at a time.
// Distinct runs may execute concurrently; the only shared state is the
// database and the supervised background group for ingestion tasks.
type Orchestrator struct {
	DB       *gorm.DB
	Contexts *ContextBuilder

	Generator Generator
	Documents DocumentCompiler
	Ingestor  Ingestor

	Ingest IngestionPolicy

	// Per-service call deadlines. Generation's expiry aborts the run;
	// the other two degrade gracefully.
	GenerationTimeout time.Duration
	DocumentTimeout   time.Duration
	IngestionTimeout  time.Duration

	// MaxQueryRunes caps the accepted query length (0 disables the check).
	MaxQueryRunes int

	// bg supervises fire-and-forget ingestion tasks so their failures are
	// still observed (logged) and Close can drain them on shutdown.
	bg conc.WaitGroup
}

// HandleQuery runs the full pipeline for one student query.
//
// The returned error is fatal only when no answer exists (unknown student,
// generation failure). A persistence failure after the answer was computed
// returns both the result and ErrExchangeNotSaved, so the call site can
// choose partial success.
func (o *Orchestrator) HandleQuery(ctx context.Context, studentID, subject, query string, attachments []Attachment) (*QueryResult, error) {
	tr := otel.Tracer("services/Orchestrator")
	ctx, span := tr.Start(ctx, "HandleQuery",
		trace.WithAttributes(
			attribute.String("student.id", studentID),
			attribute.String("subject", subject),
		),
	)
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if o.MaxQueryRunes > 0 && utf8.RuneCountInString(query) > o.MaxQueryRunes {
		return nil, ErrQueryTooLong
	}

	// 1. Context. A missing student aborts before any external call.
	cc, err := o.Contexts.Build(ctx, studentID, subject)
	if err != nil {
		return nil, err
	}
	cc.Documents = attachments

	// 2. Generation. The only externally-fatal step after the context.
	genCtx, cancel := context.WithTimeout(ctx, o.GenerationTimeout)
	res, err := o.Generator.Generate(genCtx, generation.Request{
		Context: cc,
		Query:   query,
		Type:    detectRequestType(query),
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	// An answer now exists, so the caller can no longer abort the run: the
	// remaining steps proceed on a context detached from the request's
	// cancellation (trace values kept, per-call timeouts still apply). A
	// client disconnect must not lose the exchange.
	ctx = context.WithoutCancel(ctx)

	// 3–4. Document decision and pipeline. Failures only cost the URL.
	var documentURL string
	decision := DecideDocument(res)
	if decision.Wanted() {
		documentURL = o.renderDocument(ctx, cc, decision, res.Response)
	}

	// 5. Ingestion decision; submission is fire-and-forget.
	if o.Ingest.Eligible(res.Response) {
		o.dispatchIngestion(ingestion.Record{
			Contenu: res.Response,
			Metadata: ingestion.Metadata{
				Titre:     ingestionTitle(query),
				Matiere:   subject,
				Niveau:    cc.Grade,
				StudentID: studentID,
			},
		})
	}

	// 6. Persistence. The answer is already computed; a failure here is
	// surfaced distinctly, with the result attached.
	result := &QueryResult{
		Response:       res.Response,
		DocumentURL:    documentURL,
		DocumentWanted: decision.Wanted(),
	}

	convID, err := repo.FindOrCreateConversation(ctx, o.DB, studentID, subject)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrExchangeNotSaved, err)
	}
	result.ConversationID = convID

	assistant, err := repo.AppendExchange(ctx, o.DB, convID, query, res.Response, documentURL)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrExchangeNotSaved, err)
	}
	result.AssistantMessageID = assistant.ID

	return result, nil
}

// Close drains in-flight background ingestion tasks. Call on shutdown.
func (o *Orchestrator) Close() {
	o.bg.Wait()
}

// renderDocument runs the two-stage document pipeline and returns the
// compiled document URL, or "" when every attempt failed. Attempts are an
// ordered list of renderer strategies; the first success short-circuits.
func (o *Orchestrator) renderDocument(ctx context.Context, cc *ConversationContext, decision DocumentDecision, answer string) string {
	tr := otel.Tracer("services/Orchestrator")
	ctx, span := tr.Start(ctx, "renderDocument")
	defer span.End()

	attempts := []struct {
		name string
		body func() string
	}{
		// Primary: the generator's own markup, stripped of the shell-escape
		// directive and wrapped into a compilable document.
		{"sanitized_markup", func() string {
			return latex.WrapDocument(latex.Sanitize(decision.Markup()))
		}},
		// Fallback: a minimal safe body built from the plain-text answer.
		{"escaped_text", func() string {
			return latex.MinimalDocument(enrichShortAnswer(answer))
		}},
	}

	addressee := cc.Student.FullName()
	if strings.TrimSpace(addressee) == "" && cc.Guardian != nil {
		addressee = cc.Guardian.FullName()
	}

	for _, a := range attempts {
		body := a.body()
		job := document.Job{
			Contenu:        body,
			TypeDocument:   document.TypeRevision,
			Matiere:        subjectLabel(cc.Subject),
			NomFichier:     fmt.Sprintf("fiche_revision_%d", time.Now().UnixMilli()),
			NomEleve:       addressee,
			FooterBrand:    footerBrand,
			FooterShowDate: true,
			FooterExtra:    "Sujet: " + cc.Subject,
		}

		dctx, cancel := context.WithTimeout(ctx, o.DocumentTimeout)
		res, err := o.Documents.Compile(dctx, job)
		cancel()
		if err != nil {
			log.Warn().
				Str("service", "pdf_generator_service").
				Str("attempt", a.name).
				Int("payload_bytes", len(body)).
				Err(err).
				Msg("document attempt failed")
			continue
		}
		if res.URL == "" {
			// A 2xx without a url is a service bug; treat it like a
			// rejected attempt so the fallback still gets its turn.
			log.Warn().
				Str("service", "pdf_generator_service").
				Str("attempt", a.name).
				Int("payload_bytes", len(body)).
				Msg("document attempt returned no url")
			continue
		}
		return res.URL
	}

	log.Warn().
		Str("service", "pdf_generator_service").
		Str("subject", cc.Subject).
		Msg("document pipeline exhausted, answer returned without document")
	return ""
}

// dispatchIngestion submits the record on the supervised background group.
// The outcome is never user-visible: errors are logged and discarded.
func (o *Orchestrator) dispatchIngestion(rec ingestion.Record) {
	timeout := o.IngestionTimeout
	o.bg.Go(func() {
		// Deliberately detached from the request context: the response does
		// not wait for ingestion and must not cancel it.
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := o.Ingestor.Ingest(ctx, rec); err != nil {
			log.Warn().
				Str("service", "rag_service").
				Int("payload_bytes", len(rec.Contenu)).
				Err(err).
				Msg("knowledge-base ingestion failed")
		}
	})
}

// IsPersistenceWarning reports whether err is the partial-success case where
// the answer exists but was not durably stored.
func IsPersistenceWarning(err error) bool {
	return errors.Is(err, ErrExchangeNotSaved)
}

// pdfKeywords mark a query as an explicit document request. The flag is
// only a hint for the generation service; actual document production is
// gated on the markup it returns.
var pdfKeywords = []string{"pdf", "document", "fiche"}

// detectRequestType classifies the query for the generation service.
func detectRequestType(query string) string {
	ql := strings.ToLower(query)
	for _, kw := range pdfKeywords {
		if strings.Contains(ql, kw) {
			return generation.RequestTypePDF
		}
	}
	return generation.RequestTypeExplanation
}

// ingestionTitle derives the corpus entry title from the query.
func ingestionTitle(query string) string {
	const maxLen = 60
	if utf8.RuneCountInString(query) > maxLen {
		query = string([]rune(query)[:maxLen])
	}
	return "Explication sur: " + query + "..."
}

// enrichShortAnswer pads very short answers with a generic revision outline
// so the fallback document remains useful.
func enrichShortAnswer(answer string) string {
	base := strings.TrimSpace(answer)
	if utf8.RuneCountInString(base) >= minEnrichRunes {
		return base
	}
	return base + "\n\nRésumé structuré :\n- Définition\n- Propriétés\n- Méthodes de résolution\n- Applications et exemples\n\nConseils méthodologiques :\n1. Identifier les notions en jeu.\n2. Détailler chaque étape du raisonnement.\n3. Vérifier le résultat sur un cas simple."
}

// subjectCaser renders subject tags as French display labels.
var subjectCaser = cases.Title(language.French)

// subjectLabel converts an uppercase subject tag into a display name for
// document metadata, e.g. "MATHEMATIQUES" -> "Mathematiques".
func subjectLabel(subject string) string {
	return subjectCaser.String(strings.ToLower(subject))
}
