package app

import (
	"context"
	"sync"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/ampsim/internal/controls"
)

type inputKind int

const (
	inputNudge inputKind = iota
	inputReset
	inputResetAll
	inputQuit
)

type inputEvent struct {
	kind    inputKind
	control string
	steps   int
}

// nudge keys: lower case steps down, upper case steps up
var nudgeKeys = map[rune]string{
	'v': controls.Volume,
	'b': controls.Bass,
	'm': controls.Mid,
	't': controls.Treble,
}

var resetKeys = map[rune]string{
	'1': controls.Volume,
	'2': controls.Bass,
	'3': controls.Mid,
	'4': controls.Treble,
}

func keyEvent(char rune, key keyboard.Key) (inputEvent, bool) {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return inputEvent{kind: inputQuit}, true
	case char == 'q' || char == 'Q':
		return inputEvent{kind: inputQuit}, true
	case char == '0':
		return inputEvent{kind: inputResetAll}, true
	}
	if name, ok := resetKeys[char]; ok {
		return inputEvent{kind: inputReset, control: name}, true
	}
	if name, ok := nudgeKeys[char]; ok {
		return inputEvent{kind: inputNudge, control: name, steps: -1}, true
	}
	if char >= 'A' && char <= 'Z' {
		if name, ok := nudgeKeys[char+('a'-'A')]; ok {
			return inputEvent{kind: inputNudge, control: name, steps: 1}, true
		}
	}
	return inputEvent{}, false
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Printf("keyboard input disabled: %v", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			evt, ok := keyEvent(char, key)
			if !ok {
				continue
			}
			if evt.kind == inputQuit {
				select {
				case events <- evt:
				case <-ctx.Done():
				}
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
}
