package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"arkline/internal/daemon"
	"arkline/internal/logging"
	"arkline/internal/logs"
	"arkline/internal/records"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.WithComponent(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Arkline", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func stepView(step *records.Step) StepView {
	return StepView{
		ID:              step.ID,
		Type:            string(step.Type),
		Order:           step.Order,
		Mode:            string(step.Mode),
		HumanValidation: step.HumanValidation,
		Status:          string(step.Status),
		Log:             step.Log,
		UpdatedAt:       step.UpdatedAt.Format(time.RFC3339),
	}
}

func recordView(record *records.Record, steps []*records.Step) RecordView {
	view := RecordView{
		ID:         record.ID,
		Title:      record.Title,
		NOID:       record.NOID,
		Identifier: record.Identifier,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  record.UpdatedAt.Format(time.RFC3339),
	}
	for _, step := range steps {
		view.Steps = append(view.Steps, stepView(step))
	}
	return view
}

func pageView(page *records.Page) PageView {
	return PageView{
		ID:         page.ID,
		Order:      page.Order,
		NOID:       page.NOID,
		Identifier: page.Identifier,
		Source:     page.Source,
	}
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.TotalRecords = status.TotalRecords
	resp.StepStats = make(map[string]int, len(status.StepStats))
	for k, v := range status.StepStats {
		resp.StepStats[string(k)] = v
	}
	return nil
}

func (s *service) List(_ ListRequest, resp *ListResponse) error {
	recs, err := s.daemon.ListRecords(s.ctx)
	if err != nil {
		return err
	}
	resp.Records = make([]RecordView, 0, len(recs))
	for _, record := range recs {
		steps, err := s.daemon.StepsForRecord(s.ctx, record.ID)
		if err != nil {
			return err
		}
		resp.Records = append(resp.Records, recordView(record, steps))
	}
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	record, steps, pages, err := s.daemon.DescribeRecord(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Record = recordView(record, steps)
	for _, page := range pages {
		resp.Pages = append(resp.Pages, pageView(page))
	}
	return nil
}

func (s *service) Add(req AddRequest, resp *AddResponse) error {
	if len(req.Titles) == 0 {
		return errors.New("add requires at least one title")
	}
	var specs []records.StepSpec
	for _, view := range req.Steps {
		stepType, ok := records.ParseStepType(view.Type)
		if !ok {
			return fmt.Errorf("unknown step type %q", view.Type)
		}
		mode, ok := records.ParseMode(view.Mode)
		if !ok {
			return fmt.Errorf("unknown step mode %q", view.Mode)
		}
		specs = append(specs, records.StepSpec{
			Type:            stepType,
			Order:           view.Order,
			Mode:            mode,
			HumanValidation: view.HumanValidation,
		})
	}
	s.logger.Debug("record add requested", logging.Int("count", len(req.Titles)))
	for _, title := range req.Titles {
		record, err := s.daemon.AddRecord(s.ctx, title, specs)
		if err != nil {
			return err
		}
		steps, err := s.daemon.StepsForRecord(s.ctx, record.ID)
		if err != nil {
			return err
		}
		resp.Records = append(resp.Records, recordView(record, steps))
	}
	return nil
}

func (s *service) Advance(req AdvanceRequest, resp *AdvanceResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	dispatched, err := s.daemon.Advance(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Dispatched = dispatched
	return nil
}

func (s *service) Restart(req RestartRequest, resp *RestartResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	stepType, ok := records.ParseStepType(req.StepType)
	if !ok {
		return fmt.Errorf("unknown step type %q", req.StepType)
	}
	s.logger.Info("step restart requested",
		logging.Int64(logging.FieldRecordID, req.ID),
		logging.String(logging.FieldStep, req.StepType))
	return s.daemon.RestartStep(s.ctx, req.ID, stepType)
}

func (s *service) SubmitInput(req SubmitInputRequest, resp *SubmitInputResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	return s.daemon.SubmitInput(s.ctx, req.ID, req.Rerun)
}

func (s *service) Confirm(req ConfirmRequest, resp *ConfirmResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	return s.daemon.Confirm(s.ctx, req.ID)
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	removed, err := s.daemon.RemoveRecord(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}
