package renderer

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

func TestQueueIsFIFO(t *testing.T) {
	q := newCommandQueue()
	for i := 1; i <= 3; i++ {
		mustSend(t, q, updateCommand{sceneID: scene.ObjectKey(i)})
	}
	for i := 1; i <= 3; i++ {
		cmd, ok := q.recv()
		if !ok {
			t.Fatalf("recv() closed early")
		}
		if got := cmd.(updateCommand).sceneID; got != scene.ObjectKey(i) {
			t.Fatalf("recv() #%d got scene %d, want %d", i, got, i)
		}
	}
	if _, res := q.tryRecv(); res != pollEmpty {
		t.Fatalf("tryRecv() on empty queue = %d, want pollEmpty", res)
	}
}

func TestQueueCloseDrainsThenReportsClosed(t *testing.T) {
	q := newCommandQueue()
	mustSend(t, q, updateCommand{})
	q.close()
	q.close()

	if err := q.send(updateCommand{}); !errors.Is(err, errQueueClosed) {
		t.Fatalf("send() after close error = %v, want errQueueClosed", err)
	}
	if _, ok := q.recv(); !ok {
		t.Fatal("recv() dropped an item sent before close")
	}
	if _, ok := q.recv(); ok {
		t.Fatal("recv() on a closed, empty queue returned an item")
	}
	if _, res := q.tryRecv(); res != pollClosed {
		t.Fatalf("tryRecv() = %d, want pollClosed", res)
	}
}

func TestQueueManyProducers(t *testing.T) {
	const producers, each = 8, 500
	q := newCommandQueue()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if err := q.send(updateCommand{sceneID: scene.ObjectKey(p)}); err != nil {
					t.Errorf("send() error = %v", err)
					return
				}
			}
		}()
	}

	counts := make(map[scene.ObjectKey]int)
	got := 0
	for got < producers*each {
		cmd, ok := q.recv()
		if !ok {
			t.Fatal("recv() closed early")
		}
		counts[cmd.(updateCommand).sceneID]++
		got++
	}
	wg.Wait()

	for p := 0; p < producers; p++ {
		if counts[scene.ObjectKey(p)] != each {
			t.Errorf("producer %d delivered %d items, want %d", p, counts[scene.ObjectKey(p)], each)
		}
	}
}
