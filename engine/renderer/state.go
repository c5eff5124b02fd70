package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// glState is the coordinator's view of the scene: the two most recent
// databases and the active scene and camera.
type glState struct {
	last    scene.Database
	current scene.Database

	sceneID  scene.ObjectKey
	cameraID scene.ObjectKey
}

func newGLState(db scene.Database) glState {
	return glState{last: db, current: db}
}

// update demotes current to last and installs db. All four fields change together.
func (s *glState) update(db scene.Database, sceneID, cameraID scene.ObjectKey) {
	s.last, s.current = s.current, db
	s.sceneID = sceneID
	s.cameraID = cameraID
}
