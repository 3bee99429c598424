package socket

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/memory"
	"github.com/Modern-Method/Ethos/types"
)

const protocolVersion = "1"

// Server listens on a unix domain socket and dispatches the request
// verbs named in the spec's external-interfaces section: ping, health,
// ingest, search, embed, get, workflow_get, workflow_set, consolidate.
type Server struct {
	addr    string
	service *memory.Service
	logger  *zap.Logger
	ln      net.Listener
}

// NewServer constructs a socket Server bound to addr (a filesystem
// path) once Serve is called.
func NewServer(addr string, service *memory.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, service: service, logger: logger.With(zap.String("component", "socket_server"))}
}

// Serve removes any stale socket file, listens, and accepts
// connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.addr)
	ln, err := net.Listen("unix", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// Close shuts the listener down immediately.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		req, err := ReadFrame(conn)
		if err != nil {
			return // connection closed or malformed frame; drop it
		}
		resp := s.dispatch(ctx, req)
		if err := WriteFrame(conn, resp); err != nil {
			s.logger.Warn("write response failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Map) Map {
	action, _ := req["action"].(string)
	switch action {
	case "ping":
		return ok(Map{"pong": true})
	case "health":
		return s.handleHealth(ctx)
	case "ingest":
		return s.handleIngest(ctx, req)
	case "search":
		return s.handleSearch(ctx, req)
	case "embed":
		return s.handleEmbed(ctx, req)
	case "get":
		return s.handleGet(ctx, req)
	case "workflow_get":
		return s.handleWorkflowGet(ctx, req)
	case "workflow_set":
		return s.handleWorkflowSet(ctx, req)
	case "consolidate":
		return s.handleConsolidate(ctx, req)
	default:
		return errResp("unrecognized action: " + action)
	}
}

func ok(data Map) Map {
	return Map{"status": "ok", "data": data, "version": protocolVersion}
}

func errResp(msg string) Map {
	return Map{"status": "error", "error": msg, "version": protocolVersion}
}

func errFrom(err error) Map {
	var te *types.Error
	if errors.As(err, &te) {
		return errResp(string(te.Code) + ": " + te.Message)
	}
	return errResp(err.Error())
}

func (s *Server) handleHealth(ctx context.Context) Map {
	h := s.service.CheckHealth(ctx)
	return ok(Map{"status": h.Status, "postgresql": h.Store, "pgvector": h.Store, "socket": "ok"})
}

func (s *Server) handleIngest(ctx context.Context, req Map) Map {
	content, _ := req["content"].(string)
	source, _ := req["source"].(string)
	if content == "" {
		return errResp("bad_request: content is required")
	}
	if source == "" {
		return errResp("bad_request: source is required")
	}

	id, err := s.service.Ingester.Ingest(ctx, memory.IngestInput{Content: content, Source: source})
	if err != nil {
		return errFrom(err)
	}
	return ok(Map{"queued": true, "id": id.String()})
}

func (s *Server) handleSearch(ctx context.Context, req Map) Map {
	query, _ := req["query"].(string)
	if query == "" {
		return errResp("bad_request: query is required")
	}
	limit := 5
	if l, ok := req["limit"].(int64); ok {
		limit = int(l)
	}
	useSpreading, _ := req["use_spreading"].(bool)
	var minScore *float64
	if v, ok := req["min_score"].(float64); ok {
		minScore = &v
	}

	resp, err := s.service.Retriever.Retrieve(ctx, memory.Query{
		Text: query, Limit: limit, UseSpreading: useSpreading, MinScore: minScore,
	})
	if err != nil {
		return errFrom(err)
	}

	results := make([]any, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, Map{
			"id": r.ID.String(), "content": r.Content, "score": r.Score,
			"source": string(r.Source), "created_at": r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return ok(Map{
		"results": results, "query": resp.Query, "count": int64(resp.Count), "took_ms": resp.TookMs,
	})
}

func (s *Server) handleEmbed(ctx context.Context, req Map) Map {
	idStr, _ := req["id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return errResp("bad_request: id must be a uuid")
	}
	embedded, err := s.service.EmbedByID(ctx, id)
	if err != nil {
		return errFrom(err)
	}
	return ok(Map{"id": id.String(), "embedded": embedded})
}

func (s *Server) handleGet(ctx context.Context, req Map) Map {
	idStr, _ := req["id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return errResp("bad_request: id must be a uuid")
	}
	v, err := s.service.GetByID(ctx, id)
	if err != nil {
		return errFrom(err)
	}
	return ok(Map{
		"id": v.SourceID.String(), "content": v.ContentSnippet,
		"source": string(v.SourceType), "created_at": v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleWorkflowGet(ctx context.Context, req Map) Map {
	sessionKey, _ := req["session_key"].(string)
	key, _ := req["key"].(string)
	if sessionKey == "" || key == "" {
		return errResp("bad_request: session_key and key are required")
	}
	wf, err := s.service.GetWorkflowScratch(ctx, sessionKey, key)
	if err != nil {
		return errFrom(err)
	}
	return ok(Map{"session_key": wf.SessionKey, "key": wf.Key, "value": map[string]any(wf.Value)})
}

func (s *Server) handleWorkflowSet(ctx context.Context, req Map) Map {
	sessionKey, _ := req["session_key"].(string)
	key, _ := req["key"].(string)
	value := map[string]any(nil)
	if m, ok := req["value"].(Map); ok {
		value = map[string]any(m)
	}
	if sessionKey == "" || key == "" {
		return errResp("bad_request: session_key and key are required")
	}
	wf, err := s.service.SetWorkflowScratch(ctx, sessionKey, key, value)
	if err != nil {
		return errFrom(err)
	}
	return ok(Map{"session_key": wf.SessionKey, "key": wf.Key, "value": map[string]any(wf.Value)})
}

func (s *Server) handleConsolidate(ctx context.Context, req Map) Map {
	report := s.service.Consolidator.RunCycle(ctx, true)
	return ok(Map{
		"episodes_scanned": int64(report.EpisodesScanned),
		"episodes_promoted": int64(report.EpisodesPromoted),
		"facts_created": int64(report.FactsCreated),
		"facts_updated": int64(report.FactsUpdated),
		"facts_superseded": int64(report.FactsSuperseded),
		"facts_flagged": int64(report.FactsFlagged),
		"duration_ms": report.Duration.Milliseconds(),
	})
}
