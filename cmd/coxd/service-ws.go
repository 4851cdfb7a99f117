package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/coxswain-io/coxswain/script"
	. "github.com/coxswain-io/coxswain/util/testutil"

	"github.com/gorilla/websocket"
)

// WebSocketService registers the /ws/api handler: in-bound messages
// are JSON actions, and every note (state change, error) is forwarded
// to every connection.
func (s *Service) WebSocketService(ctx context.Context) error {

	s.ops = make(chan interface{}, 1024)

	var upgrader = websocket.Upgrader{} // use default options

	conns := sync.Map{}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case x := <-s.ops:
				conns.Range(func(k, v interface{}) bool {
					s.trf("forwarding note %s", JS(x))
					c := v.(chan interface{})
					select {
					case c <- x:
					default:
						log.Printf("%v notes blocked", k)
					}
					return true
				})
			}
		}
	}()

	api := func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Service.WebSocketService connection")

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error", err)
			return
		}
		defer c.Close()

		ctl := make(chan bool)
		defer close(ctl)

		in := make(chan interface{}, 32)
		defer close(in)

		id := c.RemoteAddr().String()
		conns.Store(id, in)
		defer conns.Delete(id)

		go func() {
			mt := websocket.TextMessage

		LOOP:
			for {
				select {
				case <-ctl:
					break LOOP
				case <-ctx.Done():
					break LOOP
				case x := <-in:
					if x == nil {
						break LOOP
					}
					js, err := json.Marshal(&x)
					if err != nil {
						log.Printf("firehose Marshal error %v on %#v", err, x)
						continue
					}
					if err = c.WriteMessage(mt, js); err != nil {
						log.Println("firehose write:", err)
					}
				}
			}
		}()

		for {
			mt, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read error", err)
				break
			}

			var a script.Action
			if err := json.Unmarshal(message, &a); err != nil {
				msg := fmt.Sprintf("can't parse: %v", err)
				if err = c.WriteMessage(mt, []byte(msg)); err != nil {
					log.Println("write (err)", err)
				}
				continue
			}
			if err = s.Send(ctx, a); err != nil {
				log.Println("Send error", err)
			}
		}
	}

	http.HandleFunc("/ws/api", api)

	return nil
}
