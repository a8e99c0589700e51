package mock

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"postsapi/app/models"
	"postsapi/app/repositories"
)

// Operation names, as recorded in Calls and keyed in Fail.
const (
	OpFind             = "Find"
	OpFindByID         = "FindByID"
	OpInsert           = "Insert"
	OpUpdate           = "Update"
	OpRemove           = "Remove"
	OpInsertComment    = "InsertComment"
	OpFindPostComments = "FindPostComments"
)

// Store is an in-memory repositories.Store for tests. Fail injects an error
// for an operation; FailAfter lets the first n calls of an operation
// succeed before the injected error kicks in.
type Store struct {
	posts         map[int]*models.Post
	comments      map[int]*models.Comment
	nextPostID    int
	nextCommentID int
	fail          map[string]error
	failAfter     map[string]int
	calls         []string
	closed        bool
	mutex         sync.RWMutex
}

var _ repositories.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		posts:         make(map[int]*models.Post),
		comments:      make(map[int]*models.Comment),
		nextPostID:    1,
		nextCommentID: 1,
		fail:          make(map[string]error),
		failAfter:     make(map[string]int),
	}
}

// Fail makes every call of op return err.
func (m *Store) Fail(op string, err error) {
	m.FailAfter(op, 0, err)
}

// FailAfter makes calls of op return err once n calls have succeeded.
func (m *Store) FailAfter(op string, n int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fail[op] = err
	m.failAfter[op] = n
}

// Calls returns the operations invoked so far, in order.
func (m *Store) Calls() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]string(nil), m.calls...)
}

// Called counts invocations of op.
func (m *Store) Called(op string) int {
	count := 0
	for _, call := range m.Calls() {
		if call == op {
			count++
		}
	}
	return count
}

// Closed reports whether Close was called.
func (m *Store) Closed() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.closed
}

// record must be called with the write lock held.
func (m *Store) record(op string) error {
	m.calls = append(m.calls, op)
	err, ok := m.fail[op]
	if !ok {
		return nil
	}
	if m.failAfter[op] > 0 {
		m.failAfter[op]--
		return nil
	}
	return err
}

func (m *Store) Find(ctx context.Context, criteria repositories.Criteria) ([]*models.Post, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.record(OpFind); err != nil {
		return nil, err
	}

	posts := []*models.Post{}
	for _, post := range m.posts {
		copied := *post
		posts = append(posts, &copied)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (m *Store) FindByID(ctx context.Context, id string) (*models.Post, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.record(OpFindByID); err != nil {
		return nil, err
	}

	post, exists := m.posts[atoi(id)]
	if !exists {
		return nil, nil
	}
	copied := *post
	return &copied, nil
}

func (m *Store) Insert(ctx context.Context, input models.PostInput) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.record(OpInsert); err != nil {
		return 0, err
	}

	id := m.nextPostID
	m.nextPostID++
	m.posts[id] = models.NewPost(id, input, time.Now().UTC())
	return id, nil
}

func (m *Store) Update(ctx context.Context, id string, input models.PostInput) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.record(OpUpdate); err != nil {
		return 0, err
	}

	post, exists := m.posts[atoi(id)]
	if !exists {
		return 0, nil
	}
	post.Apply(input, time.Now().UTC())
	return 1, nil
}

func (m *Store) Remove(ctx context.Context, id string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.record(OpRemove); err != nil {
		return 0, err
	}

	n := atoi(id)
	if _, exists := m.posts[n]; !exists {
		return 0, nil
	}
	delete(m.posts, n)
	for cid, comment := range m.comments {
		if comment.PostID == n {
			delete(m.comments, cid)
		}
	}
	return 1, nil
}

func (m *Store) InsertComment(ctx context.Context, comment *models.Comment) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.record(OpInsertComment); err != nil {
		return err
	}

	if _, exists := m.posts[comment.PostID]; !exists {
		return repositories.ErrNotFound
	}
	comment.ID = m.nextCommentID
	m.nextCommentID++
	comment.BeforeCreate(time.Now().UTC())
	copied := *comment
	m.comments[comment.ID] = &copied
	return nil
}

func (m *Store) FindPostComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.record(OpFindPostComments); err != nil {
		return nil, err
	}

	n := atoi(postID)
	comments := []*models.Comment{}
	for _, comment := range m.comments {
		if comment.PostID == n {
			copied := *comment
			comments = append(comments, &copied)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments, nil
}

func (m *Store) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

// atoi maps malformed ids to 0, which never names a post.
// atoi maps non-canonical tokens to 0, which no record uses.
func atoi(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil || strconv.Itoa(n) != id {
		return 0
	}
	return n
}
