package presence

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	domain "github.com/example/pinch-server/domain/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertTagInvariant checks that the used tag sets of room equal the tags
// held by its participants and that no tag is held twice.
func assertTagInvariant(t *testing.T, room *RoomState) {
	t.Helper()

	emotions := make(map[string]struct{})
	animals := make(map[string]struct{})
	for _, p := range room.Participants() {
		_, dupEmotion := emotions[p.Emotion]
		_, dupAnimal := animals[p.Animal]
		require.False(t, dupEmotion, "emotion %s held twice", p.Emotion)
		require.False(t, dupAnimal, "animal %s held twice", p.Animal)
		emotions[p.Emotion] = struct{}{}
		animals[p.Animal] = struct{}{}
	}
	require.Equal(t, emotions, room.usedEmotions)
	require.Equal(t, animals, room.usedAnimals)
}

func TestAllocator_TagsStayUniqueUnderChurn(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), nil))
	rng := rand.New(rand.NewSource(42))
	present := make(map[string]bool)

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("p%d", rng.Intn(20))
		if present[id] && rng.Intn(2) == 0 {
			_, ok := dir.Leave("r1", id)
			require.True(t, ok)
			delete(present, id)
		} else {
			_, err := dir.Join("r1", id)
			if err != nil {
				require.ErrorIs(t, err, domain.ErrRoomFull)
				require.False(t, present[id])
				continue
			}
			present[id] = true
		}

		if room, ok := dir.Room("r1"); ok {
			assertTagInvariant(t, room)
			require.Equal(t, len(present), room.Len())
		} else {
			require.Empty(t, present)
		}
	}
}

func TestAllocator_RoomFullAfterCapacity(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))

	names := make(map[string]bool)
	for i := 0; i < 8; i++ {
		res, err := dir.Join("r1", fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		assert.False(t, names[res.Participant.DisplayName], "duplicate name %s", res.Participant.DisplayName)
		names[res.Participant.DisplayName] = true
	}

	_, err := dir.Join("r1", "p8")
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	room, _ := dir.Room("r1")
	assert.Equal(t, 8, room.Len())
	_, member := room.Participant("p8")
	assert.False(t, member)
}

func TestAllocator_SmallestVocabularyBoundsCapacity(t *testing.T) {
	vocab := domain.Vocabulary{
		Emotions: []string{"Happy", "Sleepy", "Grumpy"},
		Animals:  []string{"Panda", "Otter"},
	}
	alloc := NewAllocator(vocab, firstFree)
	assert.Equal(t, 2, alloc.Capacity())

	dir := NewDirectory(alloc)
	_, err := dir.Join("r1", "a")
	require.NoError(t, err)
	_, err = dir.Join("r1", "b")
	require.NoError(t, err)
	_, err = dir.Join("r1", "c")
	assert.ErrorIs(t, err, domain.ErrRoomFull)
}

func TestAllocator_ReleaseFreesExactlyHeldTags(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))
	for i := 0; i < 8; i++ {
		_, err := dir.Join("r1", fmt.Sprintf("p%d", i))
		require.NoError(t, err)
	}

	room, _ := dir.Room("r1")
	leaver, _ := room.Participant("p3")
	emotion, animal := leaver.Emotion, leaver.Animal

	_, ok := dir.Leave("r1", "p3")
	require.True(t, ok)
	assert.NotContains(t, room.usedEmotions, emotion)
	assert.NotContains(t, room.usedAnimals, animal)
	assert.Len(t, room.usedEmotions, 7)
	assert.Len(t, room.usedAnimals, 7)

	res, err := dir.Join("r1", "late")
	require.NoError(t, err)
	assert.Equal(t, emotion, res.Participant.Emotion)
	assert.Equal(t, animal, res.Participant.Animal)
	assert.Equal(t, emotion+animal, res.Participant.DisplayName)
	assertTagInvariant(t, room)
}

func TestDirectory_JoinReturnsOthersInOrder(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))
	for _, id := range []string{"a", "b", "c"} {
		_, err := dir.Join("r1", id)
		require.NoError(t, err)
	}

	res, err := dir.Join("r1", "d")
	require.NoError(t, err)
	require.Len(t, res.Others, 3)
	assert.Equal(t, "a", res.Others[0].ID)
	assert.Equal(t, "b", res.Others[1].ID)
	assert.Equal(t, "c", res.Others[2].ID)
	assert.Equal(t, "HappyPanda", res.Others[0].Name)
	assert.Nil(t, res.Left)
}

func TestDirectory_JoinOtherRoomLeavesPrevious(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))
	_, err := dir.Join("r1", "a")
	require.NoError(t, err)
	_, err = dir.Join("r1", "b")
	require.NoError(t, err)

	res, err := dir.Join("r2", "a")
	require.NoError(t, err)
	require.NotNil(t, res.Left)
	assert.Equal(t, "r1", res.Left.Participant.RoomID)
	assert.False(t, res.Left.Empty)
	assert.Equal(t, []domain.Peer{{ID: "b", Name: "SleepyOtter"}}, res.Left.Remaining)

	room, _ := dir.RoomOf("a")
	assert.Equal(t, "r2", room.ID)
	_, stillInR1 := dir.Member("r1", "a")
	assert.False(t, stillInR1)
}

func TestDirectory_FullTargetKeepsPreviousMembership(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))
	for i := 0; i < 8; i++ {
		_, err := dir.Join("full", fmt.Sprintf("p%d", i))
		require.NoError(t, err)
	}
	_, err := dir.Join("r1", "a")
	require.NoError(t, err)

	_, err = dir.Join("full", "a")
	require.ErrorIs(t, err, domain.ErrRoomFull)

	room, ok := dir.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, "r1", room.ID)
}

func TestDirectory_PickerFailureLeavesNoTrace(t *testing.T) {
	errEntropy := errors.New("entropy unavailable")
	fail := map[int]bool{}
	calls := 0
	pick := func(int) (int, error) {
		calls++
		if fail[calls] {
			return 0, errEntropy
		}
		return 0, nil
	}
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), pick))

	// first draw fails: the new room is not kept
	fail[1] = true
	res, err := dir.Join("r1", "a")
	require.ErrorIs(t, err, errEntropy)
	require.NotNil(t, res)
	assert.Nil(t, res.Left)
	assert.Equal(t, Stats{}, dir.Stats())

	_, err = dir.Join("r1", "a")
	require.NoError(t, err)

	// animal draw fails after the emotion was drawn: nothing is marked used
	fail[5] = true
	_, err = dir.Join("r1", "b")
	require.ErrorIs(t, err, errEntropy)

	room, ok := dir.RoomOf("a")
	require.True(t, ok)
	assert.Len(t, room.Participants(), 1)
	assertTagInvariant(t, room)
	_, member := dir.Member("r1", "b")
	assert.False(t, member)
}

func TestDirectory_RejoinSameRoom(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))
	_, err := dir.Join("r1", "a")
	require.NoError(t, err)
	_, err = dir.Join("r1", "b")
	require.NoError(t, err)

	res, err := dir.Join("r1", "a")
	require.NoError(t, err)
	require.NotNil(t, res.Left)
	assert.Equal(t, []domain.Peer{{ID: "b", Name: "SleepyOtter"}}, res.Others)

	room, _ := dir.Room("r1")
	assert.Equal(t, 2, room.Len())
	assertTagInvariant(t, room)
}

func TestDirectory_EvictsEmptyRoom(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))
	_, err := dir.Join("r1", "a")
	require.NoError(t, err)
	assert.Equal(t, Stats{Rooms: 1, Participants: 1}, dir.Stats())

	res, ok := dir.Leave("r1", "a")
	require.True(t, ok)
	assert.True(t, res.Empty)
	_, exists := dir.Room("r1")
	assert.False(t, exists)
	assert.Equal(t, Stats{}, dir.Stats())

	_, ok = dir.Leave("r1", "a")
	assert.False(t, ok)
}

func TestDirectory_LeaveClearsShareOfOwner(t *testing.T) {
	dir := NewDirectory(NewAllocator(domain.DefaultVocabulary(), firstFree))
	_, _ = dir.Join("r1", "a")
	_, _ = dir.Join("r1", "b")
	room, _ := dir.Room("r1")

	_, err := room.share.Start("a", domain.SharePreempt)
	require.NoError(t, err)

	res, ok := dir.Leave("r1", "b")
	require.True(t, ok)
	assert.False(t, res.StoppedShare)

	_, err = dir.Join("r1", "c")
	require.NoError(t, err)

	left, ok := dir.Leave("r1", "a")
	require.True(t, ok)
	assert.True(t, left.StoppedShare)
	_, sharing := room.share.Owner()
	assert.False(t, sharing)
}
