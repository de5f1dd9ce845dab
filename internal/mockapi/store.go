// Package mockapi is the development backend: an in-memory simulation of the
// story generation service. Generation advances one step per status poll
// instead of per wall-clock tick, so a client exercising the real polling
// loop sees generating turn into completed deterministically.
package mockapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"aistoryctl/internal/domain"
)

// Simulation pacing: how many polls each job stays in generating.
const (
	storyReadyAfter = 2
	shotReadyAfter  = 2
)

// videoProgressSteps is the progress sequence the rendering poll walks
// through; the last step completes the video.
var videoProgressSteps = []int{10, 40, 100}

type shotRecord struct {
	ID         string
	SortOrder  int
	Title      string
	Prompt     string
	Narration  string
	Transition string
	ImageURL   string
	Status     domain.Status

	regenPolls int
	version    int
}

type storyRecord struct {
	ID        string
	Title     string
	Content   string
	Style     string
	Status    domain.Status
	CreatedAt time.Time
	Shots     []*shotRecord

	statusPolls int

	videoRequested bool
	videoPolls     int
	videoID        string
}

// store holds every simulated story behind one mutex. The simulation is small
// enough that lock granularity does not matter.
type store struct {
	mu      sync.Mutex
	stories map[string]*storyRecord
	shots   map[string]*shotRecord
}

func newStore() *store {
	return &store{
		stories: make(map[string]*storyRecord),
		shots:   make(map[string]*shotRecord),
	}
}

// createStory registers a new story with three pending shots.
func (s *store) createStory(content, style string) *storyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	story := &storyRecord{
		ID:        uuid.NewString(),
		Content:   content,
		Style:     style,
		Status:    domain.StatusGenerating,
		CreatedAt: time.Now(),
	}
	for i := 0; i < 3; i++ {
		shot := &shotRecord{
			ID:         uuid.NewString(),
			SortOrder:  i + 1,
			Title:      fmt.Sprintf("Shot %d", i+1),
			Prompt:     fmt.Sprintf("scene %d of the story", i+1),
			Narration:  fmt.Sprintf("narration for scene %d", i+1),
			Transition: domain.TransitionCrossfade,
			Status:     domain.StatusGenerating,
		}
		story.Shots = append(story.Shots, shot)
		s.shots[shot.ID] = shot
	}
	s.stories[story.ID] = story
	return story
}

func (s *store) story(id string) (*storyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	return story, ok
}

func (s *store) shot(id string) (*shotRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shot, ok := s.shots[id]
	return shot, ok
}

// pollStoryStatus advances the story simulation one step and returns the
// current status and title.
func (s *store) pollStoryStatus(id string) (domain.Status, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	if !ok {
		return "", "", false
	}
	if story.Status == domain.StatusGenerating {
		story.statusPolls++
		if story.statusPolls >= storyReadyAfter {
			story.Status = domain.StatusCompleted
			story.Title = domain.FallbackTitle(story.Content)
		}
	}
	return story.Status, story.Title, true
}

// pollShots advances the shot simulation: each poll completes the next
// pending shot, so the list settles incrementally like the real image
// pipeline does.
func (s *store) pollShots(storyID string) ([]*shotRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok {
		return nil, false
	}
	for _, shot := range story.Shots {
		if shot.Status == domain.StatusGenerating && shot.regenPolls == 0 {
			shot.Status = domain.StatusCompleted
			shot.version++
			shot.ImageURL = imageURL(shot)
			break
		}
	}
	shots := make([]*shotRecord, len(story.Shots))
	for i, shot := range story.Shots {
		cp := *shot
		shots[i] = &cp
	}
	return shots, true
}

// updateShot applies an edit and restarts the shot's generation.
func (s *store) updateShot(id, prompt, narration, transition string) (*shotRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shot, ok := s.shots[id]
	if !ok {
		return nil, false
	}
	shot.Prompt = prompt
	shot.Narration = narration
	if transition != "" {
		shot.Transition = transition
	}
	shot.Status = domain.StatusGenerating
	shot.regenPolls = shotReadyAfter
	cp := *shot
	return &cp, true
}

// pollShotPreview advances one regeneration step.
func (s *store) pollShotPreview(id string) (domain.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shot, ok := s.shots[id]
	if !ok {
		return "", false
	}
	if shot.Status == domain.StatusGenerating && shot.regenPolls > 0 {
		shot.regenPolls--
		if shot.regenPolls == 0 {
			shot.Status = domain.StatusCompleted
			shot.version++
			shot.ImageURL = imageURL(shot)
		}
	}
	return shot.Status, true
}

// requestVideo starts (or restarts) the rendering simulation for a story.
func (s *store) requestVideo(storyID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok {
		return "", false
	}
	if story.videoID == "" {
		story.videoID = "video-" + story.ID
	}
	story.videoRequested = true
	story.videoPolls = 0
	return story.videoID, true
}

// pollVideo advances the rendering simulation and reports status plus
// progress percentage.
func (s *store) pollVideo(storyID string) (domain.Status, int, string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok || !story.videoRequested {
		return "", 0, "", "", false
	}
	if story.videoPolls < len(videoProgressSteps) {
		story.videoPolls++
	}
	progress := videoProgressSteps[story.videoPolls-1]
	if story.videoPolls < len(videoProgressSteps) {
		return domain.StatusGenerating, progress, "", "", true
	}
	preview := fmt.Sprintf("https://cdn.mock.local/%s.mp4", story.videoID)
	cover := fmt.Sprintf("https://cdn.mock.local/%s.jpg", story.videoID)
	return domain.StatusCompleted, progress, preview, cover, true
}

// completedVideos lists every finished render as a library entry.
func (s *store) completedVideos() []*storyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var done []*storyRecord
	for _, story := range s.stories {
		if story.videoRequested && story.videoPolls >= len(videoProgressSteps) {
			cp := *story
			done = append(done, &cp)
		}
	}
	return done
}

func imageURL(shot *shotRecord) string {
	return fmt.Sprintf("https://cdn.mock.local/shots/%s-v%d.png", shot.ID, shot.version)
}
