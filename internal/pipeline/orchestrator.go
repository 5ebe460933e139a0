// Package pipeline runs sticker-set generation in the background.
//
// Run validates a request, registers a task and hands a Job to a
// Dispatcher. Execute is the per-task loop: it prepares the character
// reference once, produces every item in order, builds the icon and records
// the outcome in the task store. Nothing escapes Execute; failures and
// panics end up in the task's error message.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/links"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/storage"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/task"
)

// DefaultCharacterDescription is used when the caller provides neither an
// image nor a description.
const DefaultCharacterDescription = "A cute cartoon character with simple design, white background, suitable for emoticon/sticker, kawaii style"

// DefaultFPS is the frame rate of animated stickers.
const DefaultFPS = 15

const preparingDescription = "preparing character reference"

// Synthesizer produces raw media from the generation provider.
type Synthesizer interface {
	SynthesizeCharacter(ctx context.Context, description string) ([]byte, error)
	SynthesizeStatic(ctx context.Context, reference []byte, description string) ([]byte, error)
	SynthesizeVideo(ctx context.Context, reference []byte, description string) ([]byte, error)
}

// SynthesizerFactory builds a Synthesizer bound to a caller's token.
type SynthesizerFactory func(token string) Synthesizer

// Transcoder converts raw media into submission-ready files.
type Transcoder interface {
	VideoToAnimatedImage(ctx context.Context, video []byte, size model.Size, maxKB, fps int) ([]byte, error)
	ResizeAndCompress(ctx context.Context, data []byte, size model.Size, format model.FileFormat, maxKB int) ([]byte, error)
}

// Observer is notified after the store reflects a change.
type Observer interface {
	TaskProgress(t model.GenerationTask)
	TaskCompleted(t model.GenerationTask)
	TaskFailed(t model.GenerationTask)
}

// Request is a validated generation request.
type Request struct {
	Type                 model.EmoticonType
	CharacterImage       []byte
	CharacterDescription string
	Items                []model.ItemSpec
	Token                string
}

// Job is a Request bound to its task.
type Job struct {
	TaskID string
	Request
}

// Dispatcher schedules a job for background execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Registry     *spec.Registry
	Store        *task.Store
	Synthesizers SynthesizerFactory
	Transcoder   Transcoder
	Artifacts    storage.Store
	Links        links.Builder
	Observers    []Observer
	FPS          int
}

// Orchestrator owns task creation and the background generation loop.
type Orchestrator struct {
	registry     *spec.Registry
	store        *task.Store
	synthesizers SynthesizerFactory
	transcoder   Transcoder
	artifacts    storage.Store
	links        links.Builder
	observers    []Observer
	fps          int

	dispatcher Dispatcher
	wg         sync.WaitGroup
}

// New creates an orchestrator that runs each job on its own goroutine
// under baseCtx until SetDispatcher replaces the dispatcher.
func New(baseCtx context.Context, deps Deps) *Orchestrator {
	fps := deps.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	o := &Orchestrator{
		registry:     deps.Registry,
		store:        deps.Store,
		synthesizers: deps.Synthesizers,
		transcoder:   deps.Transcoder,
		artifacts:    deps.Artifacts,
		links:        deps.Links,
		observers:    deps.Observers,
		fps:          fps,
	}
	o.dispatcher = &goroutineDispatcher{ctx: baseCtx, orchestrator: o}
	return o
}

// SetDispatcher replaces the dispatcher. Must be called before Run.
func (o *Orchestrator) SetDispatcher(d Dispatcher) {
	o.dispatcher = d
}

// AddObserver registers an observer. Must be called before Run.
func (o *Orchestrator) AddObserver(obs Observer) {
	o.observers = append(o.observers, obs)
}

// Run creates the task and dispatches it. It returns as soon as the job is
// scheduled; the returned snapshot is the freshly created pending task.
func (o *Orchestrator) Run(ctx context.Context, req Request) (model.GenerationTask, error) {
	if _, err := o.registry.Lookup(req.Type); err != nil {
		return model.GenerationTask{}, err
	}

	created := o.store.Create(req.Type, len(req.Items))

	logrus.WithFields(logrus.Fields{
		"task_id": created.TaskID,
		"type":    req.Type,
		"items":   len(req.Items),
	}).Info("generation task created")

	if err := o.dispatcher.Dispatch(ctx, Job{TaskID: created.TaskID, Request: req}); err != nil {
		o.fail(created.TaskID, err)
		return model.GenerationTask{}, fmt.Errorf("failed to schedule generation: %w", err)
	}

	return created, nil
}

// Wait blocks until every goroutine-dispatched job has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Execute runs one job to completion. It never returns an error: the
// outcome is recorded in the task store.
func (o *Orchestrator) Execute(ctx context.Context, job Job) {
	log := logrus.WithFields(logrus.Fields{
		"task_id": job.TaskID,
		"type":    job.Type,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("generation panicked")
			o.fail(job.TaskID, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := o.generate(ctx, job); err != nil {
		log.WithError(err).Warn("generation failed")
		o.fail(job.TaskID, err)
		return
	}

	o.store.Complete(job.TaskID)
	log.Info("generation completed")
	o.notify(job.TaskID, Observer.TaskCompleted)
}

func (o *Orchestrator) generate(ctx context.Context, job Job) error {
	entry, err := o.registry.Lookup(job.Type)
	if err != nil {
		return err
	}

	id := job.TaskID
	o.store.UpdateStatus(id, model.TaskStatusRunning)
	o.progress(id, 0, preparingDescription)

	synth := o.synthesizers(job.Token)

	reference, err := o.characterReference(ctx, synth, job.Request)
	if err != nil {
		return err
	}

	var first []byte
	for i, item := range job.Items {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("generation cancelled: %w", err)
		}

		o.progress(id, i, item.Description)

		data, err := o.produce(ctx, synth, entry, reference, item.Description)
		if err != nil {
			return fmt.Errorf("emoticon %d (%s): %w", i+1, item.Description, err)
		}

		result, err := o.save(ctx, i, data, entry.Format, entry.PrimarySize())
		if err != nil {
			return fmt.Errorf("emoticon %d: %w", i+1, err)
		}
		o.store.AppendResult(id, result)
		o.progress(id, i+1, item.Description)

		logrus.WithFields(logrus.Fields{
			"task_id": id,
			"index":   i,
			"size_kb": result.SizeKB,
		}).Debug("emoticon generated")

		if first == nil {
			first = data
		}
	}

	iconSource := first
	if iconSource == nil {
		iconSource = reference
	}

	icon, err := o.transcoder.ResizeAndCompress(ctx, iconSource, entry.IconSize, model.FormatPNG, entry.IconMaxSizeKB)
	if err != nil {
		return fmt.Errorf("icon: %w", err)
	}
	iconResult, err := o.save(ctx, model.IconIndex, icon, model.FormatPNG, entry.IconSize)
	if err != nil {
		return fmt.Errorf("icon: %w", err)
	}
	o.store.SetIcon(id, iconResult)

	return nil
}

func (o *Orchestrator) characterReference(ctx context.Context, synth Synthesizer, req Request) ([]byte, error) {
	if len(req.CharacterImage) > 0 {
		return req.CharacterImage, nil
	}

	description := req.CharacterDescription
	if description == "" {
		description = DefaultCharacterDescription
	}

	data, err := synth.SynthesizeCharacter(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("character reference: %w", err)
	}
	return data, nil
}

func (o *Orchestrator) produce(ctx context.Context, synth Synthesizer, entry spec.Entry, reference []byte, description string) ([]byte, error) {
	size := entry.PrimarySize()

	if entry.Animated {
		video, err := synth.SynthesizeVideo(ctx, reference, description)
		if err != nil {
			return nil, err
		}
		return o.transcoder.VideoToAnimatedImage(ctx, video, size, entry.MaxItemSizeKB, o.fps)
	}

	img, err := synth.SynthesizeStatic(ctx, reference, description)
	if err != nil {
		return nil, err
	}
	return o.transcoder.ResizeAndCompress(ctx, img, size, entry.Format, entry.MaxItemSizeKB)
}

func (o *Orchestrator) save(ctx context.Context, index int, data []byte, format model.FileFormat, size model.Size) (model.GeneratedItem, error) {
	artifactID, err := o.artifacts.Put(ctx, storage.KindImage, data, format.MIMEType())
	if err != nil {
		return model.GeneratedItem{}, fmt.Errorf("failed to store image: %w", err)
	}
	return model.GeneratedItem{
		Index:         index,
		ArtifactID:    artifactID,
		ImageURL:      o.links.Image(artifactID),
		FileExtension: format.Extension(),
		Width:         size.Width,
		Height:        size.Height,
		SizeKB:        math.Round(float64(len(data))/1024*100) / 100,
	}, nil
}

func (o *Orchestrator) progress(id string, completed int, description string) {
	o.store.UpdateProgress(id, completed, description)
	o.notify(id, Observer.TaskProgress)
}

// Tracks reports whether the task store still holds id.
func (o *Orchestrator) Tracks(id string) bool {
	_, ok := o.store.Get(id)
	return ok
}

// Fail records a failure for a task that could not be started.
func (o *Orchestrator) Fail(id string, err error) {
	o.fail(id, err)
}

func (o *Orchestrator) fail(id string, err error) {
	o.store.SetError(id, err.Error())
	o.notify(id, Observer.TaskFailed)
}

func (o *Orchestrator) notify(id string, event func(Observer, model.GenerationTask)) {
	if len(o.observers) == 0 {
		return
	}
	snapshot, ok := o.store.Get(id)
	if !ok {
		return
	}
	for _, obs := range o.observers {
		event(obs, snapshot)
	}
}

// goroutineDispatcher runs each job on its own goroutine.
type goroutineDispatcher struct {
	ctx          context.Context
	orchestrator *Orchestrator
}

func (d *goroutineDispatcher) Dispatch(_ context.Context, job Job) error {
	d.orchestrator.wg.Add(1)
	go func() {
		defer d.orchestrator.wg.Done()
		d.orchestrator.Execute(d.ctx, job)
	}()
	return nil
}
