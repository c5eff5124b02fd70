package drawlist

import (
	"cmp"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/compute"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/log"
)

var (
	// ErrNotHolder is returned when a transfer names the wrong current holder.
	ErrNotHolder = errors.New("drawlist: not the current holder")

	// ErrInvalidState is returned when an operation is called out of lifecycle order.
	ErrInvalidState = errors.New("drawlist: invalid state")

	// ErrCameraNotFound is returned by PrepareAsync when the bound camera has no location.
	ErrCameraNotFound = errors.New("drawlist: camera not found")
)

// State is the lifecycle stage of a drawlist.
type State int

const (
	// StateFree drawlists sit in the coordinator's pool with no bound data.
	StateFree State = iota

	// StateBound drawlists carry a snapshot and a scene but no commands yet.
	StateBound

	// StatePrepared drawlists carry culled, sorted commands ready for submission.
	StatePrepared

	// StateSubmitted drawlists have been rendered and await release.
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateBound:
		return "bound"
	case StatePrepared:
		return "prepared"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Holder identifies the goroutine that currently owns a drawlist.
// Workers are numbered from 1.
type Holder int32

// HolderCoordinator is the holder value of the render coordinator.
const HolderCoordinator Holder = 0

// Command is one draw of a visible object.
type Command struct {
	Object   scene.ObjectKey
	Geometry scene.ObjectKey
	Material scene.ObjectKey

	// MaterialIndex is the material id assigned by PrepareFinal, or material.NoMaterial.
	MaterialIndex uint32

	// Model is the column-major world matrix of Object.
	Model [16]float32
}

// Drawlist is a reusable container of prepared draw commands for one frame.
//
// A drawlist is owned by exactly one goroutine at a time. Ownership moves with
// Transfer; only the holder may call the other mutating methods.
type Drawlist interface {
	// ID returns the pool slot of the drawlist.
	ID() int

	// State returns the lifecycle stage.
	State() State

	// Holder returns the current owner.
	Holder() Holder

	// Transfer moves ownership from one holder to another.
	//
	// Parameters:
	//   - from: the holder expected to own the drawlist
	//   - to: the new holder
	//
	// Returns:
	//   - error: ErrNotHolder if from does not own the drawlist
	Transfer(from, to Holder) error

	// SetViewport sets the viewport size used to build the culling camera.
	SetViewport(width, height int)

	// Bind attaches a snapshot, a scene root and a camera object to a free drawlist.
	//
	// Parameters:
	//   - db: the snapshot, owned by the drawlist until Release
	//   - sceneID: the scene root to walk
	//   - cameraID: the object whose world transform is the camera
	//
	// Returns:
	//   - error: ErrInvalidState if the drawlist is not free
	Bind(db scene.Database, sceneID, cameraID scene.ObjectKey) error

	// Database returns the bound snapshot, or nil when free.
	Database() scene.Database

	// Scene returns the bound scene root.
	Scene() scene.ObjectKey

	// Camera returns the bound camera object.
	Camera() scene.ObjectKey

	// PrepareAsync culls the bound scene and resolves each visible object's
	// transform, geometry and material. It touches no graphics state and runs on
	// worker goroutines. The drawlist is prepared even when an error is returned.
	//
	// Returns:
	//   - error: ErrInvalidState if not bound, ErrCameraNotFound if the camera has no location
	PrepareAsync() error

	// PrepareFinal builds the lights and material blocks and assigns material
	// indices. Runs on the coordinator right before submission.
	//
	// Returns:
	//   - error: ErrInvalidState if not prepared
	PrepareFinal() error

	// MarkSubmitted records that the drawlist has been rendered.
	MarkSubmitted() error

	// Commands returns the prepared commands sorted by geometry, then material, then object.
	Commands() []Command

	// Matrices returns the camera matrices used for culling.
	Matrices() camera.Matrices

	// Lights returns the lights block built by PrepareFinal.
	Lights() []byte

	// Materials returns the material array built by PrepareFinal.
	Materials() []byte

	// Dropped returns the number of visible objects cut by the size limit.
	Dropped() int

	// Compute returns the compute resource given at construction, if any.
	Compute() *compute.Resource

	// Release clears all bound data and returns the drawlist to StateFree.
	Release()

	// Close stops the worker pools the drawlist started for parallel
	// preparation. A shared pool given with WithWorkerPool is left running.
	// The drawlist must not be prepared afterwards. Safe to call more than once
	// and from any goroutine.
	Close()
}

// drawlistImpl is the implementation of the Drawlist interface.
type drawlistImpl struct {
	id     int
	holder atomic.Int32
	state  State

	cfg     config.Config
	compute *compute.Resource
	width   int
	height  int

	db       scene.Database
	sceneID  scene.ObjectKey
	cameraID scene.ObjectKey

	commands []Command
	matrices camera.Matrices
	dropped  int

	lights    *light.Buffer
	materials *material.Buffer

	// pool is shared and never stopped here; owned pools run one worker each
	// so Stop always ends it.
	pool         worker.DynamicWorkerPool
	owned        []worker.DynamicWorkerPool
	closeOnce    sync.Once
	poolWorkers  int
	chunkSize    int
	textureIndex material.TextureIndex

	logger log.Logger
}

var _ Drawlist = &drawlistImpl{}

// FromConfig creates a free drawlist held by the coordinator.
//
// Parameters:
//   - cfg: renderer configuration (size limit and projection)
//   - res: optional compute resource associated with the drawlist
//   - options: functional options to further configure the drawlist
//
// Returns:
//   - Drawlist: the drawlist
func FromConfig(cfg config.Config, res *compute.Resource, options ...DrawlistBuilderOption) Drawlist {
	d := &drawlistImpl{
		cfg:         cfg,
		compute:     res,
		width:       1,
		height:      1,
		poolWorkers: max(runtime.NumCPU()-1, 1),
		chunkSize:   1024,
		logger:      log.New("drawlist"),
	}
	for _, opt := range options {
		opt(d)
	}
	d.lights = light.NewBuffer()
	d.materials = material.NewBuffer(material.WithTextureIndex(d.textureIndex))
	return d
}

func (d *drawlistImpl) ID() int {
	return d.id
}

func (d *drawlistImpl) State() State {
	return d.state
}

func (d *drawlistImpl) Holder() Holder {
	return Holder(d.holder.Load())
}

func (d *drawlistImpl) Transfer(from, to Holder) error {
	if !d.holder.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: drawlist %d is held by %d, not %d", ErrNotHolder, d.id, d.holder.Load(), from)
	}
	return nil
}

func (d *drawlistImpl) SetViewport(width, height int) {
	if width > 0 && height > 0 {
		d.width, d.height = width, height
	}
}

func (d *drawlistImpl) Bind(db scene.Database, sceneID, cameraID scene.ObjectKey) error {
	if d.state != StateFree {
		return fmt.Errorf("%w: bind drawlist %d in state %s", ErrInvalidState, d.id, d.state)
	}
	d.db = db
	d.sceneID = sceneID
	d.cameraID = cameraID
	d.state = StateBound
	return nil
}

func (d *drawlistImpl) Database() scene.Database {
	return d.db
}

func (d *drawlistImpl) Scene() scene.ObjectKey {
	return d.sceneID
}

func (d *drawlistImpl) Camera() scene.ObjectKey {
	return d.cameraID
}

func (d *drawlistImpl) PrepareAsync() error {
	if d.state != StateBound {
		return fmt.Errorf("%w: prepare drawlist %d in state %s", ErrInvalidState, d.id, d.state)
	}
	d.commands = d.commands[:0]
	d.dropped = 0
	d.state = StatePrepared

	if _, ok := d.db.Location(d.cameraID); !ok {
		return fmt.Errorf("%w: object %d", ErrCameraNotFound, d.cameraID)
	}

	cam := camera.NewCamera(
		camera.WithWorld(d.db.Position(d.cameraID)),
		camera.WithViewport(d.width, d.height),
		camera.WithFov(d.cfg.FovY),
		camera.WithNear(d.cfg.Near),
		camera.WithFar(d.cfg.Far),
	)
	d.matrices = cam.Matrices()

	keys := d.db.Walk(d.sceneID, d.matrices.ViewProjection)
	if limit := d.cfg.MaxSize; limit > 0 && len(keys) > limit {
		d.dropped = len(keys) - limit
		keys = keys[:limit]
		d.logger.Warningf("drawlist %d: %d visible object(s) over the %d limit dropped", d.id, d.dropped, limit)
	}

	d.commands = slices.Grow(d.commands, len(keys))[:len(keys)]
	d.resolve(keys)
	slices.SortFunc(d.commands, compareCommands)
	return nil
}

// resolve fills d.commands[i] for keys[i]. Large batches fan out over the
// worker pools in chunks with a WaitGroup barrier.
func (d *drawlistImpl) resolve(keys []scene.ObjectKey) {
	if len(keys) <= d.chunkSize {
		d.resolveRange(keys, d.commands)
		return
	}

	pools := d.workerPools()

	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(keys); start += d.chunkSize {
		end := min(start+d.chunkSize, len(keys))
		chunkKeys, chunkOut := keys[start:end], d.commands[start:end]

		wg.Add(1)
		id := taskID
		taskID++
		pools[id%len(pools)].SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				d.resolveRange(chunkKeys, chunkOut)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (d *drawlistImpl) workerPools() []worker.DynamicWorkerPool {
	if d.pool != nil {
		return []worker.DynamicWorkerPool{d.pool}
	}
	if d.owned == nil {
		for range d.poolWorkers {
			d.owned = append(d.owned, worker.NewDynamicWorkerPool(1, 256, 1*time.Second))
		}
		d.logger.Debugf("drawlist %d: started %d prepare worker(s)", d.id, len(d.owned))
	}
	return d.owned
}

func (d *drawlistImpl) resolveRange(keys []scene.ObjectKey, out []Command) {
	for i, key := range keys {
		drawable, _ := d.db.Drawable(key)
		out[i] = Command{
			Object:   key,
			Geometry: drawable.Geometry,
			Material: drawable.Material,
			Model:    d.db.Position(key),
		}
	}
}

func compareCommands(a, b Command) int {
	return cmp.Or(
		cmp.Compare(a.Geometry, b.Geometry),
		cmp.Compare(a.Material, b.Material),
		cmp.Compare(a.Object, b.Object),
	)
}

func (d *drawlistImpl) PrepareFinal() error {
	if d.state != StatePrepared {
		return fmt.Errorf("%w: finalize drawlist %d in state %s", ErrInvalidState, d.id, d.state)
	}
	d.lights.Build(d.db)
	d.materials.Build(d.db)
	for i := range d.commands {
		d.commands[i].MaterialIndex = d.materials.ID(d.commands[i].Material)
	}
	return nil
}

func (d *drawlistImpl) MarkSubmitted() error {
	if d.state != StatePrepared {
		return fmt.Errorf("%w: submit drawlist %d in state %s", ErrInvalidState, d.id, d.state)
	}
	d.state = StateSubmitted
	return nil
}

func (d *drawlistImpl) Commands() []Command {
	return d.commands
}

func (d *drawlistImpl) Matrices() camera.Matrices {
	return d.matrices
}

func (d *drawlistImpl) Lights() []byte {
	return d.lights.Bytes()
}

func (d *drawlistImpl) Materials() []byte {
	return d.materials.Bytes()
}

func (d *drawlistImpl) Dropped() int {
	return d.dropped
}

func (d *drawlistImpl) Compute() *compute.Resource {
	return d.compute
}

func (d *drawlistImpl) Release() {
	d.db = nil
	d.sceneID = scene.NoObject
	d.cameraID = scene.NoObject
	d.commands = d.commands[:0]
	d.matrices = camera.Matrices{}
	d.dropped = 0
	d.state = StateFree
}

func (d *drawlistImpl) Close() {
	d.closeOnce.Do(func() {
		for _, p := range d.owned {
			p.Stop()
		}
		d.owned = nil
	})
}
