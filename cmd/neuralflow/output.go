package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorgonia/neuralflow/neuron"
	"github.com/gorilla/websocket"
)

// layerInfo is what the browser side knows about a layer. It is the layer's display
// region.
type layerInfo struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Function     string  `json:"function"`
	Dependencies []int   `json:"dependencies"`
	Children     []int   `json:"children"`
	Values       []uint8 `json:"values"`
}

type frameInfo struct {
	Frame  int          `json:"frame"`
	Loss   float32      `json:"loss"`
	Layers []*layerInfo `json:"layers"`
}

func newLayerInfo(l *neuron.Layer) neuron.Region {
	return &layerInfo{
		ID:       int(l.ID()),
		Name:     l.Name(),
		Width:    l.Width(),
		Height:   l.Height(),
		Function: l.Function().String(),
	}
}

// describe refreshes the region of every layer and returns them.
func describe(frame int, loss float32, layers []*neuron.Layer) frameInfo {
	retVal := frameInfo{Frame: frame, Loss: loss}
	for _, l := range layers {
		info := l.Region(newLayerInfo).(*layerInfo)
		info.Dependencies = info.Dependencies[:0]
		for _, d := range l.Dependencies() {
			info.Dependencies = append(info.Dependencies, int(d.ID()))
		}
		info.Children = info.Children[:0]
		for _, c := range l.Children() {
			info.Children = append(info.Children, int(c.ID()))
		}
		info.Values = info.Values[:0]
		for _, u := range l.Units() {
			info.Values = append(info.Values, uint8(u.NormalizedValue()*255))
		}
		retVal.Layers = append(retVal.Layers, info)
	}
	return retVal
}

// Feed pushes topology updates to websocket clients.
type Feed struct {
	sync.Mutex
	clients map[chan []byte]struct{}
}

var upgrader = websocket.Upgrader{} // use default options

func NewFeed() *Feed {
	return &Feed{clients: make(map[chan []byte]struct{})}
}

// Publish sends v to every client. Clients that are not keeping up miss the update.
func (f *Feed) Publish(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Println("marshal:", err)
		return
	}
	f.Lock()
	defer f.Unlock()
	for ch := range f.clients {
		select {
		case ch <- b:
		default:
		}
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer c.Close()

	ch := make(chan []byte, 8)
	f.Lock()
	f.clients[ch] = struct{}{}
	f.Unlock()
	defer func() {
		f.Lock()
		delete(f.clients, ch)
		f.Unlock()
	}()

	for {
		select {
		case b := <-ch:
			if err = c.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Println("write:", err)
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
