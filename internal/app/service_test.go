package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileroom/fileroom/internal/core"
	"github.com/fileroom/fileroom/internal/domain"
)

// recordingBlobs is an in-memory blob store that counts deletes per key.
type recordingBlobs struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	deletes map[string]int
}

func newRecordingBlobs() *recordingBlobs {
	return &recordingBlobs{blobs: map[string][]byte{}, deletes: map[string]int{}}
}

func (b *recordingBlobs) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = data
	return int64(len(data)), nil
}

func (b *recordingBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *recordingBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	b.deletes[key]++
	return nil
}

func (b *recordingBlobs) stored() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

func (b *recordingBlobs) deleteCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletes[key]
}

type recordingSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (r *recordingSender) TrySend(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, data)
	return nil
}

func (r *recordingSender) Close() {}

func (r *recordingSender) events(t *testing.T) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, raw := range r.sent {
		var probe struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &probe))
		types = append(types, probe.Type)
	}
	return types
}

func newTestService() (*Service, *recordingBlobs) {
	presence := core.NewPresenceTracker(time.Minute)
	blobs := newRecordingBlobs()
	return &Service{
		Rooms:         core.NewRoomRegistry(),
		Presence:      presence,
		Store:         core.NewMessageStore(),
		Hub:           core.NewBroadcastHub(presence),
		Blobs:         blobs,
		TTL:           time.Hour,
		MaxUploadSize: 1024,
	}, blobs
}

func TestServiceJoinAnnounces(t *testing.T) {
	s, _ := newTestService()
	first := s.Join("ROOMXY", "", "Alice")
	require.True(t, first.IsNew)

	observer := &recordingSender{}
	s.Hub.Register(first.UserID, observer)

	second := s.Join("ROOMXY", "", "Bob")
	assert.True(t, second.IsNew)
	assert.Equal(t, []string{domain.EventUserJoined}, observer.events(t))

	// rejoin with a new name announces the rename, not a join
	s.Join("ROOMXY", second.UserID, "Robert")
	assert.Equal(t, []string{domain.EventUserJoined, domain.EventUserRenamed}, observer.events(t))

	// rejoin with a blank name announces nothing
	s.Join("ROOMXY", second.UserID, "   ")
	assert.Len(t, observer.events(t), 2)
}

func TestServiceSendText(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	observer := &recordingSender{}
	s.Hub.Register(user.UserID, observer)

	id, err := s.SendText("ROOMXY", user.UserID, "  hello http://a.co  ")
	require.NoError(t, err)

	m, err := s.Store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "hello http://a.co", m.Text, "text is trimmed")
	assert.Equal(t, "Alice", m.Username)
	assert.Equal(t, []domain.MessageID{id}, s.Rooms.MessageIDs("ROOMXY"))

	msgs := observer.events(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventNewMessage, msgs[0])
}

func TestServiceSendTextRejections(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	_, err := s.SendText("NOSUCH", user.UserID, "hi")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = s.SendText("ROOMXY", user.UserID, "   \t  ")
	assert.ErrorIs(t, err, domain.ErrEmptyText)
	assert.Empty(t, s.Rooms.MessageIDs("ROOMXY"), "rejected sends leave no trace")
	assert.Equal(t, 0, s.Store.Len())
}

func TestServiceSendTextAnonymous(t *testing.T) {
	s, _ := newTestService()
	s.Join("ROOMXY", "", "Alice")

	id, err := s.SendText("ROOMXY", "ghost", "boo")
	require.NoError(t, err)
	m, err := s.Store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, AnonymousName, m.Username)
}

func TestServiceSendLocation(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	lat, lng := 48.8584, 2.2945
	id, err := s.SendLocation("ROOMXY", user.UserID, &lat, &lng)
	require.NoError(t, err)
	m, err := s.Store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.KindLocation, m.Kind)
	assert.Equal(t, lat, m.Latitude)
	assert.Equal(t, lng, m.Longitude)

	_, err = s.SendLocation("ROOMXY", user.UserID, &lat, nil)
	assert.ErrorIs(t, err, domain.ErrMissingCoords)
	_, err = s.SendLocation("ROOMXY", user.UserID, nil, &lng)
	assert.ErrorIs(t, err, domain.ErrMissingCoords)
}

func TestServiceUploadBatch(t *testing.T) {
	s, blobs := newTestService()
	user := s.Join("ROOMXY", "", "Alice")
	ctx := context.Background()

	files := []Upload{
		{Name: "a.txt", Size: 3, Content: strings.NewReader("abc")},
		{Name: "big.bin", Size: 5000, Content: strings.NewReader("x")},
		{Name: "photos/b.jpg", Size: 2, Content: strings.NewReader("hi")},
	}
	res, err := s.UploadFiles(ctx, "ROOMXY", user.UserID, domain.KindFile, files)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count, "oversized file is skipped, not fatal")
	require.Len(t, res.Accepted, 2)
	assert.Equal(t, "a.txt", res.Accepted[0].Name)
	assert.Equal(t, "b.jpg", res.Accepted[1].Name, "stored under the base name")

	assert.Equal(t, 2, blobs.stored())
	assert.Len(t, s.Rooms.MessageIDs("ROOMXY"), 2)

	m, err := s.Store.Get(res.Accepted[0].MessageID)
	require.NoError(t, err)
	assert.Equal(t, string(res.Accepted[0].MessageID)+"_a.txt", m.StoredName)
	assert.Equal(t, int64(3), m.SizeBytes)
}

func TestServiceUploadLiedAboutSize(t *testing.T) {
	s, blobs := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	// declared size fits, actual payload does not
	body := strings.Repeat("x", int(s.MaxUploadSize)+10)
	res, err := s.UploadFiles(context.Background(), "ROOMXY", user.UserID, domain.KindFile,
		[]Upload{{Name: "liar.bin", Size: 10, Content: strings.NewReader(body)}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 0, blobs.stored(), "partial blob reclaimed")
}

func TestServiceUploadInvalidKind(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	_, err := s.UploadFiles(context.Background(), "ROOMXY", user.UserID, domain.KindText, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidKind)
	_, err = s.UploadFiles(context.Background(), "NOSUCH", user.UserID, domain.KindImage, nil)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestServiceDeleteMessage(t *testing.T) {
	s, blobs := newTestService()
	user := s.Join("ROOMXY", "", "Alice")
	ctx := context.Background()

	res, err := s.UploadFiles(ctx, "ROOMXY", user.UserID, domain.KindFile,
		[]Upload{{Name: "a.txt", Size: 3, Content: strings.NewReader("abc")}})
	require.NoError(t, err)
	id := res.Accepted[0].MessageID

	observer := &recordingSender{}
	s.Hub.Register(user.UserID, observer)

	require.NoError(t, s.DeleteMessage(ctx, id))
	assert.Empty(t, s.Rooms.MessageIDs("ROOMXY"))
	_, err = s.Store.Get(id)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	assert.Equal(t, []string{domain.EventMessageDeleted}, observer.events(t))

	// second delete fails and the blob is freed exactly once
	assert.ErrorIs(t, s.DeleteMessage(ctx, id), domain.ErrMessageNotFound)
	assert.Equal(t, 1, blobs.deleteCount(string(id)+"_a.txt"))
}

func TestServiceClearRoom(t *testing.T) {
	s, blobs := newTestService()
	user := s.Join("ROOMXY", "", "Alice")
	ctx := context.Background()

	_, err := s.SendText("ROOMXY", user.UserID, "one")
	require.NoError(t, err)
	res, err := s.UploadFiles(ctx, "ROOMXY", user.UserID, domain.KindImage, []Upload{
		{Name: "a.jpg", Size: 2, Content: strings.NewReader("aa")},
		{Name: "b.jpg", Size: 2, Content: strings.NewReader("bb")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)

	observer := &recordingSender{}
	s.Hub.Register(user.UserID, observer)

	count, err := s.ClearRoom(ctx, "ROOMXY")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, blobs.stored())
	assert.Equal(t, 0, s.Store.Len())
	assert.Empty(t, s.Rooms.MessageIDs("ROOMXY"))
	assert.Equal(t, []string{domain.EventRoomCleared}, observer.events(t))

	_, err = s.ClearRoom(ctx, "NOSUCH")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestServiceDataVisibility(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	id, err := s.SendText("ROOMXY", user.UserID, "hello http://a.co and https://b.org/x?y=1")
	require.NoError(t, err)
	m, err := s.Store.Get(id)
	require.NoError(t, err)

	before := m.ExpiresAt.Add(-time.Second)
	data := s.Data("ROOMXY", before)
	require.Len(t, data.Messages, 1)
	v := data.Messages[0]
	assert.Equal(t, id, v.ID)
	assert.Equal(t, []string{"http://a.co", "https://b.org/x?y=1"}, v.Links)
	assert.Equal(t, m.CreatedAt.Format("15:04"), v.Time)
	assert.Equal(t, 1, v.TimeRemaining)
	require.Len(t, data.Users, 1)
	assert.Equal(t, user.UserID, data.Users[0].ID)

	// at expires_at the message is gone from reads
	after := m.ExpiresAt
	assert.Empty(t, s.Data("ROOMXY", after).Messages)
}

func TestServiceDataUnknownRoom(t *testing.T) {
	s, _ := newTestService()
	data := s.Data("NOSUCH", time.Now())
	assert.NotNil(t, data.Messages)
	assert.NotNil(t, data.Users)
	assert.Empty(t, data.Messages)
	assert.Empty(t, data.Users)
}

func TestServiceDownload(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")
	ctx := context.Background()

	res, err := s.UploadFiles(ctx, "ROOMXY", user.UserID, domain.KindVoice,
		[]Upload{{Name: "clip.ogg", Size: 4, Content: strings.NewReader("data")}})
	require.NoError(t, err)
	id := res.Accepted[0].MessageID

	meta, rc, err := s.Download(ctx, id)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "clip.ogg", meta.Name)
	assert.Equal(t, int64(4), meta.Size)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(body))

	_, _, err = s.Download(ctx, "nosuch")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestServiceDownloadNotFile(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	id, err := s.SendText("ROOMXY", user.UserID, "hi")
	require.NoError(t, err)
	_, _, err = s.Download(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFileMessage)
}

func TestServiceDownloadExpired(t *testing.T) {
	s, _ := newTestService()
	s.Join("ROOMXY", "", "Alice")

	now := time.Now()
	m := &domain.Message{
		ID:           "expired",
		Kind:         domain.KindFile,
		Room:         "ROOMXY",
		Username:     "Alice",
		OriginalName: "a.txt",
		StoredName:   "expired_a.txt",
		SizeBytes:    3,
		CreatedAt:    now.Add(-2 * time.Hour),
		ExpiresAt:    now.Add(-time.Hour),
	}
	require.NoError(t, s.Store.Put(m))
	require.NoError(t, s.Rooms.AppendMessage("ROOMXY", m.ID))

	_, _, err := s.Download(context.Background(), m.ID)
	assert.ErrorIs(t, err, domain.ErrGone)
}

func TestServiceConcurrentSendText(t *testing.T) {
	s, _ := newTestService()
	user := s.Join("ROOMXY", "", "Alice")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SendText("ROOMXY", user.UserID, "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids := s.Rooms.MessageIDs("ROOMXY")
	require.Len(t, ids, n)
	seen := make(map[domain.MessageID]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
		_, err := s.Store.Get(id)
		assert.NoError(t, err)
	}
}

func TestServiceUsersList(t *testing.T) {
	s, _ := newTestService()
	a := s.Join("ROOMXY", "", "Alice")
	s.Join("OTHERZ", "", "Bob")

	ev := s.UsersList("ROOMXY", time.Now())
	assert.Equal(t, domain.EventUsersList, ev.Type)
	require.Len(t, ev.Users, 1)
	assert.Equal(t, a.UserID, ev.Users[0].ID)

	empty := s.UsersList("NOSUCH", time.Now())
	assert.NotNil(t, empty.Users)
	assert.Empty(t, empty.Users)
}
