package presence

import (
	"crypto/rand"
	"fmt"
	"math/big"

	domain "github.com/example/pinch-server/domain/presence"
)

// Picker returns an index in [0, n).
type Picker func(n int) (int, error)

// Allocator issues display names that are unique within a room. Uniqueness is
// enforced per tag: no two members of a room share an emotion or an animal.
type Allocator struct {
	vocab domain.Vocabulary
	pick  Picker
}

// NewAllocator creates an Allocator. A nil picker draws from crypto/rand.
func NewAllocator(vocab domain.Vocabulary, pick Picker) *Allocator {
	if pick == nil {
		pick = randomIndex
	}
	return &Allocator{vocab: vocab, pick: pick}
}

// Capacity returns how many participants one room can hold.
func (a *Allocator) Capacity() int {
	return a.vocab.Capacity()
}

// Allocate draws a free emotion and a free animal for room and marks both as
// used. It returns ErrRoomFull once either vocabulary is exhausted. Nothing is
// marked when the picker fails.
func (a *Allocator) Allocate(room *RoomState) (domain.Identity, error) {
	emotions := freeTags(a.vocab.Emotions, room.usedEmotions)
	animals := freeTags(a.vocab.Animals, room.usedAnimals)
	if len(emotions) == 0 || len(animals) == 0 {
		return domain.Identity{}, domain.ErrRoomFull
	}

	ei, err := a.pick(len(emotions))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("pick emotion: %w", err)
	}
	ai, err := a.pick(len(animals))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("pick animal: %w", err)
	}

	emotion, animal := emotions[ei], animals[ai]
	room.usedEmotions[emotion] = struct{}{}
	room.usedAnimals[animal] = struct{}{}

	return domain.Identity{
		DisplayName: emotion + animal,
		Emotion:     emotion,
		Animal:      animal,
	}, nil
}

// Release returns the tags held by p to the room's free pool.
func (a *Allocator) Release(room *RoomState, p *domain.Participant) {
	delete(room.usedEmotions, p.Emotion)
	delete(room.usedAnimals, p.Animal)
}

// HasCapacity reports whether one more participant fits in room.
func (a *Allocator) HasCapacity(room *RoomState) bool {
	if room == nil {
		return a.vocab.Capacity() > 0
	}
	return len(room.usedEmotions) < len(a.vocab.Emotions) &&
		len(room.usedAnimals) < len(a.vocab.Animals)
}

func freeTags(words []string, used map[string]struct{}) []string {
	free := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := used[w]; !ok {
			free = append(free, w)
		}
	}
	return free
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("generate random index: %w", err)
	}
	return int(v.Int64()), nil
}
