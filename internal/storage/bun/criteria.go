package bunrepo

import (
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

func withBuild(build *domain.Build) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("project = ?", build.Project).Where("build_number = ?", build.Number)
	}
}

func withKey(key string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("key = ?", key)
	}
}

func withKeySuffix(suffix string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if suffix == "" {
			return q
		}
		return q.Where("key LIKE ?", "%"+suffix)
	}
}

func orderedByKey() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("key ASC")
	}
}

func unlimited() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(0).Offset(0)
	}
}
