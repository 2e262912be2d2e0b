package answer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/handbook"
	"github.com/fwojciec/handbook/answer"
	"github.com/fwojciec/handbook/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *handbook.Catalog {
	t.Helper()
	c, err := handbook.NewCatalog([]handbook.Descriptor{{
		ID:          "engineering",
		Name:        "工学部",
		Source:      "/data/kougaku.pdf",
		Departments: []handbook.Department{{ID: "architecture", Name: "建築学科"}},
	}})
	require.NoError(t, err)
	return c
}

func testCorpus(t *testing.T) *handbook.Corpus {
	t.Helper()
	c, err := handbook.NewCorpus([]handbook.PageRecord{
		{Page: 1, Content: "目次\n第1章 履修\n第2章 学生生活"},
		{Page: 2, Content: "学生生活\n図書館は9時開館\n土日は休館"},
		{Page: 3, Content: strings.Repeat("無関係な本文\n", 30) + "奨学金の申請は4月"},
	})
	require.NoError(t, err)
	return c
}

func loadedCorpora(t *testing.T, calls *int) *mock.CorpusService {
	t.Helper()
	c := testCorpus(t)
	return &mock.CorpusService{LoadCorpusFn: func(_ context.Context, id string) (*handbook.Corpus, error) {
		*calls++
		assert.Equal(t, "engineering", id)
		return c, nil
	}}
}

func TestService_Ask(t *testing.T) {
	t.Parallel()

	t.Run("sends relevant excerpt and returns answer", func(t *testing.T) {
		t.Parallel()

		var loads int
		var prompt string
		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: loadedCorpora(t, &loads),
			Completer: &mock.Completer{CompleteFn: func(_ context.Context, p string) (string, error) {
				prompt = p
				return "図書館は9時に開館します（2ページ）。", nil
			}},
			Institution: "神戸大学",
		}

		got, err := svc.Ask(context.Background(), &handbook.Question{
			Message:      "図書館 開館時間",
			DocumentID:   "engineering",
			DepartmentID: "architecture",
		})

		require.NoError(t, err)
		assert.Equal(t, "図書館は9時に開館します（2ページ）。", got.Text)
		assert.Equal(t, 1, loads)
		assert.Contains(t, prompt, "神戸大学工学部")
		assert.Contains(t, prompt, "建築学科")
		assert.Contains(t, prompt, "--- PAGE 2 ---\n学生生活\n図書館は9時開館")
		assert.Contains(t, prompt, "図書館 開館時間")
		assert.NotContains(t, prompt, "奨学金の申請は4月")
		assert.Contains(t, prompt, "ページ番号")
		assert.Contains(t, prompt, "学生便覧に記載されていません")
	})

	t.Run("rejects empty message without loading or calling model", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{
			Catalog:   testCatalog(t),
			Corpora:   loadedCorpora(t, &loads),
			Completer: &mock.Completer{},
		}

		_, err := svc.Ask(context.Background(), &handbook.Question{Message: " 　", DocumentID: "engineering"})

		require.Error(t, err)
		assert.Equal(t, handbook.EINVALID, handbook.ErrorCode(err))
		assert.Zero(t, loads)
	})

	t.Run("returns ENOTFOUND for unknown faculty", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{Catalog: testCatalog(t), Corpora: loadedCorpora(t, &loads), Completer: &mock.Completer{}}

		_, err := svc.Ask(context.Background(), &handbook.Question{Message: "図書館", DocumentID: "medicine"})

		require.Error(t, err)
		assert.Equal(t, handbook.ENOTFOUND, handbook.ErrorCode(err))
		assert.Zero(t, loads)
	})

	t.Run("returns ENOTFOUND for unknown department", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{Catalog: testCatalog(t), Corpora: loadedCorpora(t, &loads), Completer: &mock.Completer{}}

		_, err := svc.Ask(context.Background(), &handbook.Question{
			Message: "図書館", DocumentID: "engineering", DepartmentID: "physics",
		})

		require.Error(t, err)
		assert.Equal(t, handbook.ENOTFOUND, handbook.ErrorCode(err))
		assert.Contains(t, handbook.ErrorMessage(err), "unknown department")
	})

	t.Run("maps load failure to EUNAVAILABLE", func(t *testing.T) {
		t.Parallel()

		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: &mock.CorpusService{LoadCorpusFn: func(context.Context, string) (*handbook.Corpus, error) {
				return nil, errors.New("open /data/kougaku.pdf: permission denied")
			}},
			Completer: &mock.Completer{},
		}

		_, err := svc.Ask(context.Background(), &handbook.Question{Message: "図書館", DocumentID: "engineering"})

		require.Error(t, err)
		assert.Equal(t, handbook.EUNAVAILABLE, handbook.ErrorCode(err))
		assert.NotContains(t, handbook.ErrorMessage(err), "/data/")
	})

	t.Run("maps quota error to ERATELIMIT with default retry", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: loadedCorpora(t, &loads),
			Completer: &mock.Completer{CompleteFn: func(context.Context, string) (string, error) {
				return "", handbook.Errorf(handbook.ERATELIMIT, "quota exceeded")
			}},
		}

		_, err := svc.Ask(context.Background(), &handbook.Question{Message: "図書館", DocumentID: "engineering"})

		require.Error(t, err)
		assert.Equal(t, handbook.ERATELIMIT, handbook.ErrorCode(err))
		assert.Equal(t, 60*time.Second, handbook.RetryAfter(err))
	})

	t.Run("keeps retry delay reported by model", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: loadedCorpora(t, &loads),
			Completer: &mock.Completer{CompleteFn: func(context.Context, string) (string, error) {
				return "", handbook.RateLimitf(17*time.Second, "quota exceeded")
			}},
		}

		_, err := svc.Ask(context.Background(), &handbook.Question{Message: "図書館", DocumentID: "engineering"})

		assert.Equal(t, 17*time.Second, handbook.RetryAfter(err))
	})

	t.Run("maps other model errors to EUPSTREAM", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: loadedCorpora(t, &loads),
			Completer: &mock.Completer{CompleteFn: func(context.Context, string) (string, error) {
				return "", errors.New("connection reset")
			}},
		}

		_, err := svc.Ask(context.Background(), &handbook.Question{Message: "図書館", DocumentID: "engineering"})

		require.Error(t, err)
		assert.Equal(t, handbook.EUPSTREAM, handbook.ErrorCode(err))
	})

	t.Run("returns fallback for blank model output", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: loadedCorpora(t, &loads),
			Completer: &mock.Completer{CompleteFn: func(context.Context, string) (string, error) {
				return "  \n", nil
			}},
		}

		got, err := svc.Ask(context.Background(), &handbook.Question{Message: "図書館", DocumentID: "engineering"})

		require.NoError(t, err)
		assert.Equal(t, answer.FallbackAnswer, got.Text)
	})

	t.Run("bounds model call with timeout", func(t *testing.T) {
		t.Parallel()

		var loads int
		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: loadedCorpora(t, &loads),
			Completer: &mock.Completer{CompleteFn: func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}},
			Timeout: 10 * time.Millisecond,
		}

		_, err := svc.Ask(context.Background(), &handbook.Question{Message: "図書館", DocumentID: "engineering"})

		require.Error(t, err)
		assert.Equal(t, handbook.EUPSTREAM, handbook.ErrorCode(err))
	})

	t.Run("includes only recent history", func(t *testing.T) {
		t.Parallel()

		var loads int
		var prompt string
		svc := &answer.Service{
			Catalog: testCatalog(t),
			Corpora: loadedCorpora(t, &loads),
			Completer: &mock.Completer{CompleteFn: func(_ context.Context, p string) (string, error) {
				prompt = p
				return "ok", nil
			}},
			MaxHistory: 2,
		}

		_, err := svc.Ask(context.Background(), &handbook.Question{
			Message:    "土日は？",
			DocumentID: "engineering",
			History: []handbook.Turn{
				{Content: "最初の質問", IsUser: true},
				{Content: "図書館は何時から？", IsUser: true},
				{Content: "9時からです。", IsUser: false},
			},
		})

		require.NoError(t, err)
		assert.NotContains(t, prompt, "最初の質問")
		assert.Contains(t, prompt, "ユーザー: 図書館は何時から？")
		assert.Contains(t, prompt, "アシスタント: 9時からです。")
	})
}
