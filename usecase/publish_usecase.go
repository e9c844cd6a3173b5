package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

// IStatusBroadcaster pushes publish record transitions to live subscribers.
type IStatusBroadcaster interface {
	BroadcastPublishStatus(rec *model.PublishRecord)
}

// IResultCache keeps terminal per-video results for cheap status polling.
type IResultCache interface {
	Set(ctx context.Context, userID, videoID string, results map[string]model.PublishResult)
	Get(ctx context.Context, userID, videoID string) (map[string]model.PublishResult, bool)
}

type IPublishUsecase interface {
	Publish(ctx context.Context, userID string, media *model.MediaRef, platforms []string) (*dto.PublishResponse, error)
	GetStatus(ctx context.Context, videoID, userID string) ([]*model.PublishRecord, error)
}

type publishUsecase struct {
	store       repository.IPublishStore
	tokens      ITokenUsecase
	pipelines   map[string]repository.IPipeline
	hub         IStatusBroadcaster
	resultCache IResultCache
	timeout     time.Duration
}

func NewPublishUsecase(
	store repository.IPublishStore,
	tokens ITokenUsecase,
	pipelines map[string]repository.IPipeline,
	hub IStatusBroadcaster,
	resultCache IResultCache,
	pipelineTimeout time.Duration,
) IPublishUsecase {
	if pipelineTimeout <= 0 {
		pipelineTimeout = 360 * time.Second
	}
	return &publishUsecase{
		store:       store,
		tokens:      tokens,
		pipelines:   pipelines,
		hub:         hub,
		resultCache: resultCache,
		timeout:     pipelineTimeout,
	}
}

// Publish fans the video out to every requested platform concurrently. One
// platform failing, timing out or lacking a connection never blocks the
// others; each outcome lands in its own publish record and the combined map
// is returned once every pipeline settles.
func (u *publishUsecase) Publish(ctx context.Context, userID string, media *model.MediaRef, platforms []string) (*dto.PublishResponse, error) {
	if userID == "" {
		return nil, errors.New("userID required")
	}
	if len(platforms) == 0 {
		return nil, errors.New("at least one platform required")
	}
	norm := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if !model.KnownPlatform(p) {
			return nil, errors.New("unsupported platform: " + p)
		}
		norm = append(norm, p)
	}

	video := &model.VideoRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       media.Title,
		Description: media.Description,
		FileURL:     media.PublicURL,
		Status:      model.PublishStatusPending,
	}
	if err := u.store.CreateVideo(ctx, video); err != nil {
		return nil, err
	}
	records, err := u.store.CreateRecords(ctx, video.ID, userID, norm)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[string]model.PublishResult, len(records))
	collect := func(platform string, res model.PublishResult) {
		mu.Lock()
		results[platform] = res
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, u.timeout)
			defer cancel()
			collect(rec.Platform, u.runPipeline(pctx, rec, media))
			// Pipeline failures are reported per platform, never as a
			// group error; returning one would cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	if u.resultCache != nil {
		u.resultCache.Set(ctx, userID, video.ID, results)
	}

	return &dto.PublishResponse{
		VideoID: video.ID,
		FileURL: media.PublicURL,
		Results: results,
	}, nil
}

func (u *publishUsecase) runPipeline(ctx context.Context, rec *model.PublishRecord, media *model.MediaRef) model.PublishResult {
	lg := logger.GetLogger().
		WithField("platform", rec.Platform).
		WithField("video_id", rec.VideoID)

	cred, err := u.tokens.EnsureFresh(ctx, rec.UserID, rec.Platform)
	if err != nil {
		msg := "platform not connected"
		if !errors.Is(err, model.ErrNotConnected) && !errors.Is(err, model.ErrRefreshFailed) && !errors.Is(err, model.ErrRefreshNotSupported) {
			msg = "credential lookup failed"
			lg.WithField("error", err).Error("Credential lookup failed")
		}
		return u.finish(ctx, rec, model.PublishStatusFailed, nil, &msg)
	}

	pipeline, ok := u.pipelines[rec.Platform]
	if !ok {
		msg := "no pipeline for platform"
		return u.finish(ctx, rec, model.PublishStatusFailed, nil, &msg)
	}

	u.transition(ctx, rec, model.PublishStatusUploading, nil, nil)

	var mediaID string
	if phased, ok := pipeline.(repository.IPhasedPipeline); ok {
		mediaID, err = phased.PublishWithPhases(ctx, cred, media, func(status string) {
			u.transition(ctx, rec, status, nil, nil)
		})
	} else {
		mediaID, err = pipeline.Publish(ctx, cred, media)
	}
	if err != nil {
		lg.WithField("error", err).Error("Publish pipeline failed")
		msg := err.Error()
		return u.finish(ctx, rec, model.PublishStatusFailed, nil, &msg)
	}
	lg.WithField("platform_media_id", mediaID).Info("Publish pipeline finished")
	return u.finish(ctx, rec, model.PublishStatusPublished, &mediaID, nil)
}

func (u *publishUsecase) transition(ctx context.Context, rec *model.PublishRecord, status string, mediaID, errMsg *string) {
	rec.Status = status
	rec.PlatformMediaID = mediaID
	rec.ErrorMessage = errMsg
	if err := u.store.UpdateRecordStatus(ctx, rec.ID, status, mediaID, errMsg); err != nil {
		logger.GetLogger().WithField("error", err).WithField("record_id", rec.ID).Error("Failed to update publish record")
	}
	if u.hub != nil {
		u.hub.BroadcastPublishStatus(rec)
	}
}

func (u *publishUsecase) finish(ctx context.Context, rec *model.PublishRecord, status string, mediaID, errMsg *string) model.PublishResult {
	// Record updates must land even when the pipeline context is already
	// cancelled or timed out.
	if ctx.Err() != nil {
		if status != model.PublishStatusPublished {
			msg := "timeout"
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				msg = "cancelled"
			}
			errMsg = &msg
			status = model.PublishStatusFailed
			mediaID = nil
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	u.transition(ctx, rec, status, mediaID, errMsg)

	res := model.PublishResult{Platform: rec.Platform, Status: status}
	if mediaID != nil {
		res.PlatformMediaID = *mediaID
	}
	if errMsg != nil {
		res.Error = *errMsg
	}
	return res
}

// GetStatus serves the status endpoint: terminal results come from the
// cache when present, otherwise straight from postgres.
func (u *publishUsecase) GetStatus(ctx context.Context, videoID, userID string) ([]*model.PublishRecord, error) {
	if u.resultCache == nil {
		return u.store.GetRecords(ctx, videoID, userID)
	}
	if cached, ok := u.resultCache.Get(ctx, userID, videoID); ok {
		records := make([]*model.PublishRecord, 0, len(cached))
		for _, p := range model.Platforms {
			res, ok := cached[p]
			if !ok {
				continue
			}
			rec := &model.PublishRecord{VideoID: videoID, UserID: userID, Platform: res.Platform, Status: res.Status}
			if res.PlatformMediaID != "" {
				id := res.PlatformMediaID
				rec.PlatformMediaID = &id
			}
			if res.Error != "" {
				msg := res.Error
				rec.ErrorMessage = &msg
			}
			records = append(records, rec)
		}
		return records, nil
	}
	return u.store.GetRecords(ctx, videoID, userID)
}
