package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/pkg/logger"
)

// RelationSnapshot 匹配期间的只读关系视图。并发扇出会同时读，
// 账号持有者独立修改；允许读到稍旧的快照，但引擎绝不回写。
type RelationSnapshot interface {
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
}

// MatchPolicy 全局订阅策略
type MatchPolicy struct {
	// DiscoveryTag 发现标签名；StrictDiscovery 为真时以
	// 「贴文带发现标签」替代常规关键字/标签包含测试
	DiscoveryTag    string
	StrictDiscovery bool
}

// MatchResult 匹配结果，按投递机制分桶。home 桶按天线 owner 账号
// 折叠（同一账号多条命中只投一次 home），list 桶按列表 id 折叠。
type MatchResult struct {
	HomeBacked map[string]string // accountID -> antennaID
	ListBacked map[string]string // listID -> antennaID
	Dedicated  []string          // antennaID（专属天线时间线）
}

func newMatchResult() *MatchResult {
	return &MatchResult{
		HomeBacked: make(map[string]string),
		ListBacked: make(map[string]string),
	}
}

// Empty 没有任何命中
func (r *MatchResult) Empty() bool {
	return len(r.HomeBacked) == 0 && len(r.ListBacked) == 0 && len(r.Dedicated) == 0
}

// AntennaMatcher 天线匹配引擎。对 (贴文内容, 天线集合快照) 是纯函数，
// 不修改任何规则状态。候选集假定已由 AntennaRepository 粗筛。
type AntennaMatcher struct {
	rel    RelationSnapshot
	policy MatchPolicy
}

func NewAntennaMatcher(rel RelationSnapshot, policy MatchPolicy) *AntennaMatcher {
	return &AntennaMatcher{rel: rel, policy: policy}
}

// Match 全量规则匹配。先跑廉价的关系型过滤（域名/账号/标签的允许与
// 排除），幸存者再做需要物化正文的内容级谓词。
func (m *AntennaMatcher) Match(ctx context.Context, status *model.Status, candidates []*model.Antenna) (*MatchResult, error) {
	res := newMatchResult()
	now := time.Now()
	for _, a := range candidates {
		if a.Expired(now) {
			continue
		}
		ok, err := m.matchFull(ctx, status, a)
		if err != nil {
			return nil, err
		}
		if ok {
			bucket(res, a)
		}
	}
	return res, nil
}

// MatchSTL 同服 firehose 式简化匹配：仅本地贴文；转发需要 owner 与
// 作者存在关注关系。不套用关键字/标签过滤。
func (m *AntennaMatcher) MatchSTL(ctx context.Context, status *model.Status, candidates []*model.Antenna) (*MatchResult, error) {
	res := newMatchResult()
	if !status.Local() {
		return res, nil
	}
	now := time.Now()
	for _, a := range candidates {
		if a.Expired(now) {
			continue
		}
		if !m.passesSimpleFlags(status, a) {
			continue
		}
		if status.IsReblog() {
			follows, err := m.rel.IsFollowing(ctx, a.AccountID, status.AccountID)
			if err != nil {
				return nil, err
			}
			if !follows {
				continue
			}
		}
		bucket(res, a)
	}
	return res, nil
}

// MatchLTL 公开 firehose 式简化匹配：仅本地、非转发、public 层级。
func (m *AntennaMatcher) MatchLTL(ctx context.Context, status *model.Status, candidates []*model.Antenna) (*MatchResult, error) {
	res := newMatchResult()
	if !status.Local() || status.IsReblog() || status.Visibility != model.VisibilityPublic {
		return res, nil
	}
	now := time.Now()
	for _, a := range candidates {
		if a.Expired(now) {
			continue
		}
		if !m.passesSimpleFlags(status, a) {
			continue
		}
		bucket(res, a)
	}
	return res, nil
}

func (m *AntennaMatcher) passesSimpleFlags(status *model.Status, a *model.Antenna) bool {
	if a.IgnoreReblog && status.IsReblog() {
		return false
	}
	if a.WithMediaOnly && !status.HasMedia {
		return false
	}
	return true
}

func (m *AntennaMatcher) matchFull(ctx context.Context, status *model.Status, a *model.Antenna) (bool, error) {
	authorID := status.AccountID
	domain := ""
	if status.Account != nil {
		domain = status.Account.Domain
	}

	// 廉价关系过滤：空集合表示通配
	if !a.AnyAccounts && len(a.AccountIDs) > 0 && !contains(a.AccountIDs, authorID) {
		return false, nil
	}
	if contains(a.ExcludeAccountIDs, authorID) {
		return false, nil
	}
	if !a.AnyDomains && len(a.Domains) > 0 && !contains(a.Domains, domain) {
		return false, nil
	}
	if contains(a.ExcludeDomains, domain) {
		return false, nil
	}
	if !a.AnyTags && len(a.TagIDs) > 0 && !m.policy.StrictDiscovery {
		if !intersects(a.TagIDs, status.TagIDs()) {
			return false, nil
		}
	}
	if intersects(a.ExcludeTagIDs, status.TagIDs()) {
		return false, nil
	}

	if !m.passesSimpleFlags(status, a) {
		return false, nil
	}

	// 内容级谓词
	if m.policy.StrictDiscovery && m.policy.DiscoveryTag != "" {
		// dtl 策略：以发现标签替代常规关键字包含测试
		if !status.HasTagName(m.policy.DiscoveryTag) {
			return false, nil
		}
	} else if len(a.Keywords) > 0 {
		hit, err := anyKeywordMatches(a.Keywords, status.Text)
		if err != nil {
			recordRuleError(a.ID, err)
			return false, nil
		}
		if !hit {
			return false, nil
		}
	}
	if len(a.ExcludeKeywords) > 0 {
		hit, err := anyKeywordMatches(a.ExcludeKeywords, status.Text)
		if err != nil {
			recordRuleError(a.ID, err)
			return false, nil
		}
		if hit {
			return false, nil
		}
	}

	// unlisted 且非公开可检索的贴文：仅限关注作者的 owner
	if status.Visibility == model.VisibilityUnlisted && !status.Searchability.PublicSearchable() {
		follows, err := m.rel.IsFollowing(ctx, a.AccountID, authorID)
		if err != nil {
			return false, err
		}
		if !follows {
			return false, nil
		}
	}
	return true, nil
}

func bucket(res *MatchResult, a *model.Antenna) {
	switch {
	case !a.InsertFeeds:
		res.Dedicated = append(res.Dedicated, a.ID)
	case a.ListID == "":
		if _, ok := res.HomeBacked[a.AccountID]; !ok {
			res.HomeBacked[a.AccountID] = a.ID
		}
	default:
		if _, ok := res.ListBacked[a.ListID]; !ok {
			res.ListBacked[a.ListID] = a.ID
		}
	}
}

// anyKeywordMatches 任一关键字命中即真。关键字默认为子串匹配，
// `/.../` 形式按正则编译；编译失败向上抛由调用方隔离
func anyKeywordMatches(keywords []string, text string) (bool, error) {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if len(kw) > 2 && strings.HasPrefix(kw, "/") && strings.HasSuffix(kw, "/") {
			re, err := regexp.Compile(kw[1 : len(kw)-1])
			if err != nil {
				return false, err
			}
			if re.MatchString(text) {
				return true, nil
			}
			continue
		}
		if strings.Contains(text, kw) {
			return true, nil
		}
	}
	return false, nil
}

// recordRuleError 坏规则只跳过该天线；留给运营方的审计面
func recordRuleError(antennaID string, err error) {
	evalErr := &RuleEvaluationError{AntennaID: antennaID, Err: err}
	logger.Warn("antenna rule evaluation failed",
		zap.String("antenna_id", antennaID), zap.Error(err))
	sentry.CaptureException(evalErr)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}
