package mail

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
	"github.com/fadilmartias/resume-screener/internal/config"
)

// InboundMessage is one fetched mailbox message. It is consumed into a
// candidate profile (or discarded) and never persisted as-is.
type InboundMessage struct {
	SeqNum    uint32
	UID       uint32
	Subject   string
	From      string
	FromName  string
	Date      time.Time
	Structure MimeNode
}

// Session is an authenticated IMAP connection with INBOX selected.
type Session struct {
	client      *imapclient.Client
	numMessages uint32
}

// Connect dials the configured IMAP server over TLS, authenticates and
// selects INBOX. Callers must Close the session on every exit path.
func Connect(cfg *config.MailboxConfig) (*Session, error) {
	client, err := imapclient.DialTLS(cfg.Addr, nil)
	if err != nil {
		return nil, apperrors.Connection("dial imap server", err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, apperrors.Auth("login rejected", err)
	}

	sel, err := client.Select("INBOX", nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return nil, apperrors.Protocol("select INBOX", err)
	}

	return &Session{client: client, numMessages: sel.NumMessages}, nil
}

// Close logs out and releases the connection.
func (s *Session) Close() error {
	err := s.client.Logout().Wait()
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// RecentWindow computes the sequence-number range covering the limit most
// recent messages: max(1, total-limit+1) through total.
func RecentWindow(total, limit uint32) (start, stop uint32) {
	if limit >= total {
		return 1, total
	}
	return total - limit + 1, total
}

// SortNewestFirst orders messages by descending sequence number. Fetch
// results are ordered by this terminal sort over the complete set, so the
// outcome does not depend on fetch interleaving.
func SortNewestFirst(msgs []InboundMessage) {
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].SeqNum > msgs[j].SeqNum
	})
}

// ListRecent fetches envelopes and body structures for the most recent
// limit messages, newest first.
func (s *Session) ListRecent(limit uint32) ([]InboundMessage, error) {
	if s.numMessages == 0 || limit == 0 {
		return nil, nil
	}
	start, stop := RecentWindow(s.numMessages, limit)

	var seqSet imap.SeqSet
	seqSet.AddRange(start, stop)

	fetchOptions := &imap.FetchOptions{
		UID:           true,
		Envelope:      true,
		BodyStructure: &imap.FetchItemBodyStructure{Extended: true},
	}
	buffers, err := s.client.Fetch(seqSet, fetchOptions).Collect()
	if err != nil {
		return nil, apperrors.Protocol("fetch envelopes", err)
	}

	msgs := make([]InboundMessage, 0, len(buffers))
	for _, buf := range buffers {
		msg := InboundMessage{
			SeqNum:    buf.SeqNum,
			UID:       uint32(buf.UID),
			Structure: toMimeNode(buf.BodyStructure),
		}
		if env := buf.Envelope; env != nil {
			msg.Subject = env.Subject
			msg.Date = env.Date
			if len(env.From) > 0 {
				msg.From = env.From[0].Addr()
				msg.FromName = env.From[0].Name
			}
		}
		msgs = append(msgs, msg)
	}

	SortNewestFirst(msgs)
	return msgs, nil
}

// FetchText returns the raw BODY[TEXT] section of a message.
func (s *Session) FetchText(seqNum uint32) ([]byte, error) {
	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierText}
	return s.fetchSection(seqNum, section)
}

// FetchPart returns the raw bytes of one body part, addressed by its
// dot-joined part number (e.g. "2.1").
func (s *Session) FetchPart(seqNum uint32, partNumber string) ([]byte, error) {
	var part []int
	for _, field := range strings.Split(partNumber, ".") {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 {
			return nil, apperrors.Protocol("invalid part number "+partNumber, err)
		}
		part = append(part, n)
	}
	section := &imap.FetchItemBodySection{Part: part}
	return s.fetchSection(seqNum, section)
}

func (s *Session) fetchSection(seqNum uint32, section *imap.FetchItemBodySection) ([]byte, error) {
	seqSet := imap.SeqSetNum(seqNum)
	fetchOptions := &imap.FetchOptions{BodySection: []*imap.FetchItemBodySection{section}}

	buffers, err := s.client.Fetch(seqSet, fetchOptions).Collect()
	if err != nil {
		return nil, apperrors.Protocol("fetch body section", err)
	}
	if len(buffers) == 0 {
		return nil, apperrors.Protocol("no data for message", nil)
	}
	return buffers[0].FindBodySection(section), nil
}

func toMimeNode(bs imap.BodyStructure) MimeNode {
	switch bs := bs.(type) {
	case *imap.BodyStructureSinglePart:
		p := &Part{
			MediaType: strings.ToLower(bs.Type),
			Subtype:   strings.ToLower(bs.Subtype),
			Encoding:  strings.ToLower(bs.Encoding),
			Size:      bs.Size,
			Filename:  bs.Filename(),
		}
		if bs.Extended != nil && bs.Extended.Disposition != nil {
			p.Disposition = strings.ToLower(bs.Extended.Disposition.Value)
		}
		return p
	case *imap.BodyStructureMultiPart:
		m := &Multipart{Subtype: strings.ToLower(bs.Subtype)}
		for _, child := range bs.Children {
			m.Children = append(m.Children, toMimeNode(child))
		}
		return m
	}
	return nil
}
