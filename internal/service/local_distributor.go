package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

// LocalDistributor 本地收件人分发：解析 自己/提及/粉丝/列表/话题关注
// 的投递集合并批量入队。所有大集合都按游标分页扫描，从不整体载入内存。
type LocalDistributor struct {
	statusRepo  repository.StatusRepository
	accountRepo repository.AccountRepository
	fanRepo     repository.FanRepository
	listRepo    repository.ListRepository
	tagRepo     repository.TagRepository
	antennaRepo repository.AntennaRepository
	matcher     *AntennaMatcher
	queue       repository.JobQueue

	policy         MatchPolicy
	batchSize      int
	activityWindow time.Duration
}

func NewLocalDistributor(
	statusRepo repository.StatusRepository,
	accountRepo repository.AccountRepository,
	fanRepo repository.FanRepository,
	listRepo repository.ListRepository,
	tagRepo repository.TagRepository,
	antennaRepo repository.AntennaRepository,
	matcher *AntennaMatcher,
	queue repository.JobQueue,
	policy MatchPolicy,
	batchSize int,
	activityWindow time.Duration,
) *LocalDistributor {
	if batchSize <= 0 {
		batchSize = 500
	}
	if activityWindow <= 0 {
		activityWindow = 30 * 24 * time.Hour
	}
	return &LocalDistributor{
		statusRepo: statusRepo, accountRepo: accountRepo, fanRepo: fanRepo,
		listRepo: listRepo, tagRepo: tagRepo, antennaRepo: antennaRepo,
		matcher: matcher, queue: queue, policy: policy,
		batchSize: batchSize, activityWindow: activityWindow,
	}
}

// Distribute 计算并入队本地投递。步骤顺序关系正确性而非性能。
func (d *LocalDistributor) Distribute(ctx context.Context, status *model.Status, isUpdate bool, silencedAccountIDs []string) error {
	// 1. 自己（远端作者跳过）
	if status.Local() {
		if err := d.enqueue(ctx, feedJob(status, model.JobKindHome, status.AccountID, "", isUpdate)); err != nil {
			return err
		}
	}

	// 2. 提及通知（跳过已静默通知的账号）
	mentionedLocal, err := d.accountRepo.LocalIDs(ctx, status.MentionedAccountIDs())
	if err != nil {
		return err
	}
	notified := make(map[string]bool, len(mentionedLocal))
	var jobs []model.DeliveryJob
	for _, id := range mentionedLocal {
		notified[id] = true
		if contains(silencedAccountIDs, id) {
			continue
		}
		jobs = append(jobs, feedJob(status, model.JobKindNotifyMention, id, "", isUpdate))
	}
	if err := d.enqueue(ctx, jobs...); err != nil {
		return err
	}

	// 3. 编辑时额外通知转发/引用者，不重复通知提及对象
	if isUpdate {
		if err := d.notifyUpdate(ctx, status, notified); err != nil {
			return err
		}
	}

	// 4. 按可见性分支
	switch status.Visibility {
	case model.VisibilityPublic, model.VisibilityPublicUnlisted, model.VisibilityLogin,
		model.VisibilityUnlisted, model.VisibilityPrivate:
		if err := d.deliverToFollowers(ctx, status, isUpdate); err != nil {
			return err
		}
		if err := d.deliverToLists(ctx, status, isUpdate); err != nil {
			return err
		}
		if err := d.deliverToAntennas(ctx, status, isUpdate, true); err != nil {
			return err
		}
	case model.VisibilityLimited:
		if err := d.deliverToMentionedLists(ctx, status, mentionedLocal, isUpdate); err != nil {
			return err
		}
		// limited 只跑天线 + STL，不跑 LTL
		if err := d.deliverToAntennas(ctx, status, isUpdate, false); err != nil {
			return err
		}
		if err := d.deliverToMentionedHomes(ctx, status, mentionedLocal, isUpdate); err != nil {
			return err
		}
	default: // direct 及其余
		if err := d.deliverToMentionedHomes(ctx, status, mentionedLocal, isUpdate); err != nil {
			return err
		}
		if !isUpdate {
			if err := d.recordConversation(ctx, status, mentionedLocal); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *LocalDistributor) notifyUpdate(ctx context.Context, status *model.Status, alreadyNotified map[string]bool) error {
	rebloggers, err := d.statusRepo.LocalRebloggerIDs(ctx, status.ID)
	if err != nil {
		return err
	}
	quoters, err := d.statusRepo.LocalQuoterIDs(ctx, status.ID)
	if err != nil {
		return err
	}
	var jobs []model.DeliveryJob
	seen := make(map[string]bool)
	for _, id := range append(rebloggers, quoters...) {
		if alreadyNotified[id] || seen[id] || id == status.AccountID {
			continue
		}
		seen[id] = true
		jobs = append(jobs, feedJob(status, model.JobKindNotifyUpdate, id, "", true))
	}
	return d.enqueue(ctx, jobs...)
}

func (d *LocalDistributor) deliverToFollowers(ctx context.Context, status *model.Status, isUpdate bool) error {
	offset := 0
	for {
		fanIDs, err := d.fanRepo.ListLocalFanIDs(ctx, status.AccountID, offset, d.batchSize)
		if err != nil {
			return err
		}
		if len(fanIDs) == 0 {
			return nil
		}
		jobs := make([]model.DeliveryJob, 0, len(fanIDs))
		for _, id := range fanIDs {
			jobs = append(jobs, feedJob(status, model.JobKindHome, id, "", isUpdate))
		}
		if err := d.enqueue(ctx, jobs...); err != nil {
			return err
		}
		if len(fanIDs) < d.batchSize {
			return nil
		}
		offset += d.batchSize
	}
}

func (d *LocalDistributor) deliverToLists(ctx context.Context, status *model.Status, isUpdate bool) error {
	offset := 0
	for {
		lists, err := d.listRepo.ListsContaining(ctx, status.AccountID, offset, d.batchSize)
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			return nil
		}
		jobs := make([]model.DeliveryJob, 0, len(lists))
		for _, l := range lists {
			jobs = append(jobs, feedJob(status, model.JobKindList, l.ID, "", isUpdate))
		}
		if err := d.enqueue(ctx, jobs...); err != nil {
			return err
		}
		if len(lists) < d.batchSize {
			return nil
		}
		offset += d.batchSize
	}
}

func (d *LocalDistributor) deliverToMentionedLists(ctx context.Context, status *model.Status, mentionedLocal []string, isUpdate bool) error {
	lists, err := d.listRepo.ListsContainingOwnedBy(ctx, status.AccountID, mentionedLocal)
	if err != nil {
		return err
	}
	jobs := make([]model.DeliveryJob, 0, len(lists))
	for _, l := range lists {
		jobs = append(jobs, feedJob(status, model.JobKindList, l.ID, "", isUpdate))
	}
	return d.enqueue(ctx, jobs...)
}

func (d *LocalDistributor) deliverToMentionedHomes(ctx context.Context, status *model.Status, mentionedLocal []string, isUpdate bool) error {
	jobs := make([]model.DeliveryJob, 0, len(mentionedLocal))
	for _, id := range mentionedLocal {
		if id == status.AccountID {
			continue // 自己在第 1 步已投
		}
		jobs = append(jobs, feedJob(status, model.JobKindHome, id, "", isUpdate))
	}
	return d.enqueue(ctx, jobs...)
}

// subscribable 作者是否可被天线订阅：退订的作者只有带发现标签的贴文参与匹配
func (d *LocalDistributor) subscribable(status *model.Status) bool {
	if status.Account == nil || status.Account.Subscribable {
		return true
	}
	return d.policy.DiscoveryTag != "" && status.HasTagName(d.policy.DiscoveryTag)
}

func (d *LocalDistributor) deliverToAntennas(ctx context.Context, status *model.Status, isUpdate, withLTL bool) error {
	if !d.subscribable(status) {
		return nil
	}
	activeAfter := time.Now().Add(-d.activityWindow)

	candidates, err := d.antennaRepo.Candidates(ctx, status, activeAfter)
	if err != nil {
		return err
	}
	res, err := d.matcher.Match(ctx, status, candidates)
	if err != nil {
		return err
	}
	if err := d.enqueueMatchResult(ctx, status, res, isUpdate); err != nil {
		return err
	}

	stl, err := d.antennaRepo.STLCandidates(ctx, activeAfter)
	if err != nil {
		return err
	}
	res, err = d.matcher.MatchSTL(ctx, status, stl)
	if err != nil {
		return err
	}
	if err := d.enqueueMatchResult(ctx, status, res, isUpdate); err != nil {
		return err
	}

	if !withLTL {
		return nil
	}
	ltl, err := d.antennaRepo.LTLCandidates(ctx, activeAfter)
	if err != nil {
		return err
	}
	res, err = d.matcher.MatchLTL(ctx, status, ltl)
	if err != nil {
		return err
	}
	return d.enqueueMatchResult(ctx, status, res, isUpdate)
}

func (d *LocalDistributor) enqueueMatchResult(ctx context.Context, status *model.Status, res *MatchResult, isUpdate bool) error {
	if res.Empty() {
		return nil
	}
	var jobs []model.DeliveryJob
	for _, antennaID := range res.Dedicated {
		jobs = append(jobs, feedJob(status, model.JobKindAntenna, antennaID, antennaID, isUpdate))
	}
	for accountID, antennaID := range res.HomeBacked {
		jobs = append(jobs, feedJob(status, model.JobKindHome, accountID, antennaID, isUpdate))
	}
	for listID, antennaID := range res.ListBacked {
		jobs = append(jobs, feedJob(status, model.JobKindList, listID, antennaID, isUpdate))
	}
	return d.enqueue(ctx, jobs...)
}

// DeliverToHashtagFollowers 话题关注者投递（仅公开类层级由编排器触发）
func (d *LocalDistributor) DeliverToHashtagFollowers(ctx context.Context, status *model.Status, isUpdate bool) error {
	for _, tag := range status.Tags {
		offset := 0
		for {
			ids, err := d.tagRepo.FollowerIDs(ctx, tag.TagID, offset, d.batchSize)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				break
			}
			jobs := make([]model.DeliveryJob, 0, len(ids))
			for _, id := range ids {
				jobs = append(jobs, feedJob(status, model.JobKindTag, id, "", isUpdate))
			}
			if err := d.enqueue(ctx, jobs...); err != nil {
				return err
			}
			if len(ids) < d.batchSize {
				break
			}
			offset += d.batchSize
		}
	}
	return nil
}

func (d *LocalDistributor) recordConversation(ctx context.Context, status *model.Status, mentionedLocal []string) error {
	members := append([]string{status.AccountID}, mentionedLocal...)
	var jobs []model.DeliveryJob
	seen := make(map[string]bool, len(members))
	for _, id := range members {
		if seen[id] {
			continue
		}
		seen[id] = true
		jobs = append(jobs, feedJob(status, model.JobKindConversation, id, "", false))
	}
	return d.enqueue(ctx, jobs...)
}

func (d *LocalDistributor) enqueue(ctx context.Context, jobs ...model.DeliveryJob) error {
	return d.queue.EnqueueBulk(ctx, jobs, d.batchSize)
}

func feedJob(status *model.Status, kind, targetID, antennaID string, update bool) model.DeliveryJob {
	return model.DeliveryJob{
		ID:        uuid.New().String(),
		StatusID:  status.ID,
		TargetID:  targetID,
		Kind:      kind,
		AntennaID: antennaID,
		Update:    update,
	}
}
