package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime/pprof"

	"github.com/coxswain-io/coxswain/core"
	"github.com/coxswain-io/coxswain/script"
	"github.com/coxswain-io/coxswain/sio"
	"github.com/coxswain-io/coxswain/tools"
	. "github.com/coxswain-io/coxswain/util/testutil"
)

func main() {

	var (
		configFile = flag.String("c", "", "YAML config file (overrides other flags)")

		source   = flag.String("s", "reducer.yaml", "reducer source (a filename)")
		dbFile   = flag.String("d", "", "journal filename")
		bootFile = flag.String("b", "", "file to read for initial actions")

		httpAddr  = flag.String("h", "", "HTTP address for our service")
		wsService = flag.Bool("w", true, "WebSockets service")
		httpDir   = flag.String("f", "", "directory to serve via HTTP")

		listenOnStdin = flag.Bool("I", false, "listen for actions on stdin")
		emitToStdout  = flag.Bool("O", false, "emit state to stdout")

		mqttBroker = flag.String("mqtt-broker", "", "MQTT broker (couples the store to MQTT)")
		mqttTopics = flag.String("mqtt-topics", "", "MQTT subscription topic(s)")
		mqttOut    = flag.String("mqtt-out", "notes", "MQTT out-bound topic")
	)

	flag.BoolVar(&Verbose, "v", false, "log lots of wonderful things")

	flag.Parse()

	var conf *Config
	if *configFile != "" {
		var err error
		if conf, err = LoadConfig(*configFile); err != nil {
			panic(err)
		}
	} else {
		conf = &Config{
			Source:     &script.Source{URL: "file://" + *source},
			DBFile:     *dbFile,
			BootFile:   *bootFile,
			HTTPAddr:   *httpAddr,
			WebSockets: *wsService,
			HTTPDir:    *httpDir,
			Stdin:      *listenOnStdin,
			Stdout:     *emitToStdout,
			Verbose:    Verbose,
		}
		if *mqttBroker != "" {
			conf.MQTT = &MQTTSection{
				MQTTConfig:    sio.MQTTConfig{Broker: *mqttBroker, Clean: true},
				SubTopics:     *mqttTopics,
				OutboundTopic: *mqttOut,
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if conf.MQTT != nil {
		if err := pilot(ctx, conf); err != nil {
			panic(err)
		}
		return
	}

	s, err := NewService(ctx, conf)
	if err != nil {
		panic(err)
	}
	s.Tracing = conf.Verbose

	monitorErrors(ctx, s.store.Errors)

	s.Start(ctx)

	if conf.BootFile != "" {
		if err := s.Boot(ctx, conf.BootFile); err != nil {
			panic(err)
		}
	}

	if conf.Stdin {
		go func() {
			var out io.Writer
			if conf.Stdout {
				out = os.Stdout
			}
			if err := s.Listener(ctx, bufio.NewReader(os.Stdin), out); err != nil {
				log.Printf("Service.Listener error %s", err)
			}
			Logf("stdin listener done")
			cancel()
		}()
	}

	if conf.HTTPAddr != "" {
		go func() {
			if conf.WebSockets {
				log.Printf("WebSockets service starting")
				if err := s.WebSocketService(ctx); err != nil {
					panic(err)
				}
			}

			if conf.HTTPDir != "" {
				log.Printf("HTTP serving files in %s", conf.HTTPDir)
				fs := http.FileServer(http.Dir(conf.HTTPDir))
				http.Handle("/static/", http.StripPrefix("/static", fs))
			}

			http.HandleFunc("/def.html", func(w http.ResponseWriter, r *http.Request) {
				if err := tools.RenderDefPage(s.def, w, nil); err != nil {
					fmt.Fprintf(w, "RenderDefPage error: %s", err)
				}
			})

			log.Printf("HTTP service on %s", conf.HTTPAddr)
			if err := s.HTTPServer(ctx, conf.HTTPAddr); err != nil {
				panic(err)
			}
		}()
	}

	<-ctx.Done()
}

// pilot couples the store to an MQTT broker instead of the service
// APIs.
func pilot(ctx context.Context, conf *Config) error {
	def, err := script.ResolveSource(ctx, conf.Source)
	if err != nil {
		return err
	}
	reducer, err := script.NewReducer(ctx, def)
	if err != nil {
		return err
	}

	st := core.NewStore[script.State, script.Action](reducer, def.InitialState())
	st.Same = script.SameRefresh
	st.Verbose = conf.Verbose

	mq, err := sio.NewMQTT(&conf.MQTT.MQTTConfig, conf.MQTT.SubTopics, conf.MQTT.OutboundTopic)
	if err != nil {
		return err
	}
	mq.Verbose = conf.Verbose

	p := sio.NewPilot(st, mq)
	p.Verbose = conf.Verbose

	return p.Run(ctx)
}

func monitorErrors(ctx context.Context, c chan error) {
	go func() {
		log.Printf("monitoring errors")
	LOOP:
		for {
			select {
			case <-ctx.Done():
				break LOOP
			case err := <-c:
				if err != nil {
					log.Printf("errors %s", err)
				}
			}
		}
		log.Printf("halting monitoring of errors")
	}()
}

// complain writes an error response.  The message goes through the JSON
// encoder so quotes and the like don't break the output.
func complain(w http.ResponseWriter, x interface{}, status int) {
	w.WriteHeader(status)
	js, err := json.Marshal(map[string]interface{}{
		"error": fmt.Sprintf("%s", x),
	})
	if err != nil {
		js = []byte(`{"error":"unrenderable"}`)
	}
	w.Write(append(js, '\n'))
}

func (s *Service) APIHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		js, err := io.ReadAll(r.Body)
		if err != nil {
			complain(w, err, http.StatusBadRequest)
			return
		}
		if err := r.Body.Close(); err != nil {
			log.Printf("Service.HTTPServer warning on Body.Close(): %v", err)
		}

		var a script.Action
		if err := json.Unmarshal(js, &a); err != nil {
			complain(w, err, http.StatusBadRequest)
			return
		}
		if err = s.Send(ctx, a); err != nil {
			complain(w, err, http.StatusInternalServerError)
			return
		}

		js, err = json.Marshal(s.store.State())
		if err != nil {
			complain(w, err, http.StatusInternalServerError)
			return
		}
		if _, err = w.Write(js); err != nil {
			log.Printf("Service.HTTPServer warning on Write(): %v", err)
		}
	}
}

func (s *Service) HTTPServer(ctx context.Context, addr string) error {
	http.Handle("/goroutines", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pprof.Lookup("goroutine").WriteTo(w, 1)
	}))

	http.Handle("/api", s.APIHandler(ctx))

	return http.ListenAndServe(addr, nil)
}
