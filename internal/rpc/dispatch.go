package rpc

import (
	"context"
	"encoding/json"

	"github.com/escrowlabs/escrowd/internal/models"
	"github.com/escrowlabs/escrowd/internal/service"
)

// Wire views. The RPC layer never hands out internal model types directly.

type projectView struct {
	ID          uint64 `json:"id"`
	Payer       string `json:"payer"`
	Payee       string `json:"payee"`
	Amount      uint64 `json:"amount"`
	State       string `json:"state"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
}

func toProjectView(p models.Project) projectView {
	return projectView{
		ID:          p.ID,
		Payer:       string(p.Payer),
		Payee:       string(p.Payee),
		Amount:      p.Amount,
		State:       string(p.State),
		Title:       p.Title,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

type eventView struct {
	ID        string `json:"id"`
	ProjectID uint64 `json:"project_id"`
	Op        string `json:"op"`
	Actor     string `json:"actor"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
	Payout    uint64 `json:"payout,omitempty"`
	Fee       uint64 `json:"fee,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func toEventView(ev models.Event) eventView {
	return eventView{
		ID:        ev.ID,
		ProjectID: ev.ProjectID,
		Op:        ev.Op,
		Actor:     string(ev.Actor),
		FromState: string(ev.FromState),
		ToState:   string(ev.ToState),
		Amount:    ev.Amount,
		Recipient: string(ev.Recipient),
		Payout:    ev.Payout,
		Fee:       ev.Fee,
		CreatedAt: ev.CreatedAt,
	}
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

func decodeParams(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (s *Server) dispatchAuth(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "auth_register":
		var params struct {
			Email       string `json:"email"`
			DisplayName string `json:"display_name"`
			Password    string `json:"password"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		session, err := s.auth.Register(ctx, params.Email, params.DisplayName, params.Password)
		if err != nil {
			return nil, mapServiceError(err), true
		}
		return sessionResult(session), nil, true

	case "auth_login":
		var params struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		session, err := s.auth.Login(ctx, params.Email, params.Password)
		if err != nil {
			return nil, mapServiceError(err), true
		}
		return sessionResult(session), nil, true
	}
	return nil, nil, false
}

func (s *Server) dispatchEscrow(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	// Single-id operations share a params shape.
	type idParams struct {
		ProjectID uint64 `json:"project_id"`
	}

	switch method {
	case "escrow_create":
		var params struct {
			Payee       string `json:"payee"`
			Amount      uint64 `json:"amount"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		project, err := s.escrow.Create(ctx, models.Principal(params.Payee), params.Amount, params.Title, params.Description)
		if err != nil {
			return nil, mapServiceError(err), true
		}
		return map[string]any{"project": toProjectView(project)}, nil, true

	case "escrow_updateAmount":
		var params struct {
			ProjectID uint64 `json:"project_id"`
			Amount    uint64 `json:"amount"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.UpdateAmount(ctx, params.ProjectID, params.Amount); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_fund":
		var params struct {
			ProjectID uint64 `json:"project_id"`
			Value     uint64 `json:"value"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.Fund(ctx, params.ProjectID, params.Value); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_approve":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.Approve(ctx, params.ProjectID); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_release":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.Release(ctx, params.ProjectID); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_withdraw":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.Withdraw(ctx, params.ProjectID); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_timeoutWithdraw":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.TimeoutWithdraw(ctx, params.ProjectID); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_cancel":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.Cancel(ctx, params.ProjectID); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_flagDispute":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.FlagDispute(ctx, params.ProjectID); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_resolveDispute":
		var params struct {
			ProjectID    uint64 `json:"project_id"`
			AwardToPayee bool   `json:"award_to_payee"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.escrow.ResolveDispute(ctx, params.ProjectID, params.AwardToPayee); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "escrow_getProject":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		project, err := s.escrow.GetProject(ctx, params.ProjectID)
		if err != nil {
			return nil, mapServiceError(err), true
		}
		return map[string]any{"project": toProjectView(project)}, nil, true

	case "escrow_listProjects":
		projects, err := s.escrow.ListProjects(ctx)
		if err != nil {
			return nil, mapServiceError(err), true
		}
		views := make([]projectView, len(projects))
		for i, p := range projects {
			views[i] = toProjectView(p)
		}
		return map[string]any{"projects": views}, nil, true

	case "escrow_listEvents":
		var params idParams
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		events, err := s.escrow.ListEvents(ctx, params.ProjectID)
		if err != nil {
			return nil, mapServiceError(err), true
		}
		views := make([]eventView, len(events))
		for i, ev := range events {
			views[i] = toEventView(ev)
		}
		return map[string]any{"events": views}, nil, true
	}
	return nil, nil, false
}

func (s *Server) dispatchAdmin(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "admin_setArbitrator":
		var params struct {
			Arbitrator string `json:"arbitrator"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.admin.SetArbitrator(ctx, models.Principal(params.Arbitrator)); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true

	case "admin_setPlatformFee":
		var params struct {
			Percent uint64 `json:"percent"`
		}
		if !decodeParams(rawParams, &params) {
			return nil, rpcInvalidParams(), true
		}
		if err := s.admin.SetPlatformFee(ctx, params.Percent); err != nil {
			return nil, mapServiceError(err), true
		}
		return okResult(), nil, true
	}
	return nil, nil, false
}

func okResult() map[string]string {
	return map[string]string{"status": "ok"}
}

func sessionResult(session *service.Session) map[string]any {
	return map[string]any{
		"token": session.Token,
		"user": userView{
			ID:          session.User.ID,
			Email:       session.User.Email,
			DisplayName: session.User.DisplayName,
			CreatedAt:   session.User.CreatedAt,
		},
	}
}
