//go:build linux
// +build linux

package fan

import (
	"time"

	"github.com/warthog618/gpiod"
)

var lines *gpiod.Lines

func startTacho(chip string) {
	var offsets []int
	for _, v := range tachoData {
		offsets = append(offsets, v.pinoffset)
	}

	lines, _ = gpiod.RequestLines(chip, offsets,
		gpiod.WithRisingEdge,
		gpiod.WithEventHandler(eventHandler))

	go func() {
		for {
			time.Sleep(time.Millisecond * 500)
			for _, v := range tachoData {
				next := (v.cursor + 1) % 8
				v.counter[next] = 0
				v.cursor = next
			}
		}
	}()
}

func eventHandler(evt gpiod.LineEvent) {
	index := pin2index[evt.Offset]
	tacho := tachoData[index]

	if tacho != nil {
		tacho.counter[tacho.cursor]++
	}
}
