package httpadapter

import (
	"context"
	"net/http"

	"github.com/kirillkom/medication-finder/internal/config"
	"github.com/kirillkom/medication-finder/internal/core/domain"
)

type fakeSearcher struct {
	got  domain.SearchRequest
	page *domain.SearchPage
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchPage, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

type fakeCatalog struct {
	gotCursor string
	gotLimit  int
	page      *domain.SearchPage
	med       *domain.Medication
	err       error
}

func (f *fakeCatalog) List(_ context.Context, cursor string, limit int) (*domain.SearchPage, error) {
	f.gotCursor, f.gotLimit = cursor, limit
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		return &domain.SearchPage{Items: []domain.Medication{}}, nil
	}
	return f.page, nil
}

func (f *fakeCatalog) GetBySlug(_ context.Context, _ string) (*domain.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.med, nil
}

type fakeChat struct {
	gotPrompt  string
	gotHistory []domain.ConversationTurn
	resp       *domain.ChatResponse
	err        error
}

func (f *fakeChat) Chat(_ context.Context, prompt string, history []domain.ConversationTurn) (*domain.ChatResponse, error) {
	f.gotPrompt, f.gotHistory = prompt, history
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeIndexer struct {
	got []string
	err error
}

func (f *fakeIndexer) RequestReindex(_ context.Context, ids []string) (int, error) {
	f.got = ids
	if f.err != nil {
		return 0, f.err
	}
	return len(ids), nil
}

func (f *fakeIndexer) ReindexByID(context.Context, string) error { return nil }

func newTestHandler(cfg config.Config, services Services) http.Handler {
	if services.Search == nil {
		services.Search = &fakeSearcher{page: &domain.SearchPage{Items: []domain.Medication{}}}
	}
	if services.Catalog == nil {
		services.Catalog = &fakeCatalog{}
	}
	if services.Chat == nil {
		services.Chat = &fakeChat{}
	}
	if services.Indexer == nil {
		services.Indexer = &fakeIndexer{}
	}
	return NewRouter(cfg, services, nil).Handler()
}
