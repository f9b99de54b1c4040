package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/fadilmartias/resume-screener/internal/mail"
	"github.com/fadilmartias/resume-screener/internal/model"
	"github.com/fadilmartias/resume-screener/internal/normalize"
	"github.com/fadilmartias/resume-screener/internal/service"
)

// IngestionStore is the persistence collaborator consumed by ingestion.
type IngestionStore interface {
	CreateCandidate(c *model.Candidate) error
	SetEmbedding(id string, embedding pgvector.Vector) error
}

// MailSession abstracts an open mailbox connection.
type MailSession interface {
	ListRecent(limit uint32) ([]mail.InboundMessage, error)
	FetchText(seqNum uint32) ([]byte, error)
	FetchPart(seqNum uint32, partNumber string) ([]byte, error)
	Close() error
}

// IngestResult is the per-message outcome of a mailbox run.
type IngestResult struct {
	UID         uint32 `json:"uid"`
	Subject     string `json:"subject"`
	CandidateID string `json:"candidate_id,omitempty"`
	NeedsReview bool   `json:"needs_review,omitempty"`
	Error       string `json:"error,omitempty"`
}

type IngestReport struct {
	FetchedCount int            `json:"fetched_count"`
	CreatedCount int            `json:"created_count"`
	ReviewCount  int            `json:"review_count"`
	FailedCount  int            `json:"failed_count"`
	Results      []IngestResult `json:"results"`
}

type IngestionUsecase struct {
	connect    func() (MailSession, error)
	store      IngestionStore
	ai         service.AIServiceInterface
	embedder   service.EmbeddingServiceInterface // nil when not configured
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

func NewIngestionUsecase(
	connect func() (MailSession, error),
	store IngestionStore,
	ai service.AIServiceInterface,
	embedder service.EmbeddingServiceInterface,
	normalizer *normalize.Normalizer,
	logger *zap.Logger,
) *IngestionUsecase {
	return &IngestionUsecase{
		connect:    connect,
		store:      store,
		ai:         ai,
		embedder:   embedder,
		normalizer: normalizer,
		logger:     logger,
	}
}

// RunMailbox pulls the most recent limit messages and turns each resume
// into a pending candidate. One malformed message never aborts the run;
// mailbox connection and authentication failures do. Limits outside
// [1, 1000] fall back to the default of 20.
func (uc *IngestionUsecase) RunMailbox(ctx context.Context, limit int) (*IngestReport, error) {
	if limit < 1 || limit > 1000 {
		limit = 20
	}

	sess, err := uc.connect()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	msgs, err := sess.ListRecent(uint32(limit))
	if err != nil {
		return nil, err
	}

	report := &IngestReport{FetchedCount: len(msgs)}
	for _, msg := range msgs {
		result := uc.ingestMessage(ctx, sess, msg)
		switch {
		case result.Error != "":
			report.FailedCount++
		case result.NeedsReview:
			report.ReviewCount++
		default:
			report.CreatedCount++
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func (uc *IngestionUsecase) ingestMessage(ctx context.Context, sess MailSession, msg mail.InboundMessage) IngestResult {
	result := IngestResult{UID: msg.UID, Subject: msg.Subject}

	doc, err := uc.messageDocument(sess, msg)
	if err != nil {
		uc.logger.Warn("message document failed",
			zap.Uint32("uid", msg.UID), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	if doc == nil {
		result.NeedsReview = true
		return result
	}

	candidate, err := uc.persistProfile(ctx, *doc, "mailbox", msg)
	if err != nil {
		uc.logger.Warn("candidate persist failed",
			zap.Uint32("uid", msg.UID), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	if candidate == nil {
		result.NeedsReview = true
		return result
	}
	result.CandidateID = candidate.ID.String()
	return result
}

// messageDocument picks the first resume-like attachment, falling back to
// the message's primary text. A nil document means there was nothing to
// extract from.
func (uc *IngestionUsecase) messageDocument(sess MailSession, msg mail.InboundMessage) (*normalize.Document, error) {
	if att := pickResumeAttachment(msg.Structure); att != nil {
		raw, err := sess.FetchPart(msg.SeqNum, att.PartNumber)
		if err != nil {
			return nil, err
		}
		encoding := ""
		if part := mail.PartAt(msg.Structure, att.PartNumber); part != nil {
			encoding = part.Encoding
		}
		decoded := mail.DecodeContent(raw, encoding)

		doc, err := uc.normalizer.Normalize(decoded, att.MediaType, att.Filename)
		if err != nil {
			return nil, err
		}
		return &doc, nil
	}

	body, err := sess.FetchText(msg.SeqNum)
	if err != nil {
		return nil, err
	}
	text := mail.ExtractPrimaryText(msg.Structure, body, 0)
	if text == "" {
		return nil, nil
	}
	doc := normalize.TextDocument(text)
	return &doc, nil
}

func pickResumeAttachment(root mail.MimeNode) *mail.Attachment {
	for _, att := range mail.FindAttachments(root) {
		mediaType := strings.ToLower(att.MediaType)
		isPDF := mediaType == "application/pdf" ||
			strings.HasSuffix(strings.ToLower(att.Filename), ".pdf")
		if isPDF || strings.HasPrefix(mediaType, "image/") {
			a := att
			return &a
		}
	}
	return nil
}

// IngestUpload runs the extraction pipeline over a directly uploaded file.
// A nil candidate with nil error means the document needs manual review.
func (uc *IngestionUsecase) IngestUpload(ctx context.Context, data []byte, mediaType, filename string) (*model.Candidate, error) {
	doc, err := uc.normalizer.Normalize(data, mediaType, filename)
	if err != nil {
		return nil, err
	}
	return uc.persistProfile(ctx, doc, "upload", mail.InboundMessage{})
}

func (uc *IngestionUsecase) persistProfile(ctx context.Context, doc normalize.Document, source string, msg mail.InboundMessage) (*model.Candidate, error) {
	profile, err := uc.ai.ExtractProfile(ctx, doc)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	if profile.Name == "" {
		profile.Name = msg.FromName
	}
	if profile.Email == "" {
		profile.Email = msg.From
	}
	profile.Status = model.StatusPending
	profile.Source = source
	profile.SubmittedAt = msg.Date
	if profile.SubmittedAt.IsZero() {
		profile.SubmittedAt = time.Now()
	}

	if err := uc.store.CreateCandidate(profile); err != nil {
		return nil, err
	}

	uc.embedSummary(ctx, profile)
	return profile, nil
}

// embedSummary is best effort; the candidate exists whether or not the
// similarity vector could be produced.
func (uc *IngestionUsecase) embedSummary(ctx context.Context, c *model.Candidate) {
	if uc.embedder == nil || c.Summary == "" {
		return
	}
	vec, err := uc.embedder.GenerateEmbedding(ctx, c.Summary)
	if err != nil {
		uc.logger.Warn("embedding generation failed",
			zap.String("candidate", c.ID.String()), zap.Error(err))
		return
	}
	if err := uc.store.SetEmbedding(c.ID.String(), pgvector.NewVector(vec)); err != nil {
		uc.logger.Warn("embedding persist failed",
			zap.String("candidate", c.ID.String()), zap.Error(err))
	}
}
