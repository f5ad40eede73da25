// Package jsonrpc is the miner's TCP command interface: one JSON object per
// line in, one JSON object per line out. It serves operator overrides and
// status queries; it never feeds back into control decisions on its own.
package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	log "minerctl/log"
)

type APIRequest struct {
	Command   string      `json:"command"`
	Parameter interface{} `json:"parameter"`
}

type ServerHandlerFunc func(*Server, net.Conn, *APIRequest, []byte, error) error

type Server struct {
	listener       net.Listener
	done           chan interface{}
	wg             sync.WaitGroup
	handler        ServerHandlerFunc
	bConnKeepAlive bool
	ReadTimeout    time.Duration
}

func NewServer(addr string, handler ServerHandlerFunc, bKeepAlive bool) *Server {
	s := &Server{
		done:        make(chan interface{}),
		ReadTimeout: time.Second * 5,
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorf("%v", err)
		return nil
	}
	s.listener = l
	s.wg.Add(1)
	if handler == nil {
		s.handler = DefaultServerHandler
	} else {
		s.handler = handler
	}
	s.bConnKeepAlive = bKeepAlive
	return s
}

func (s *Server) ListenAndServe() {
	if s == nil {
		return
	}

	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Errorf("Accept error %v", err)
			}
		} else {
			s.wg.Add(1)
			go func() {
				s.handleConnection(conn)
				s.wg.Done()
			}()
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) {
	if s == nil {
		return
	}
	close(s.done)
	s.listener.Close()
	s.wg.Wait()
}

func (s *Server) handleConnection(conn net.Conn) {
	log.Debug("Connection from ", conn.RemoteAddr())
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 65536)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			log.Debugf("err %v", err)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				log.Debugf("handleConnection read: %v", err)
			}
			break
		}
		buf := scanner.Bytes()
		if len(buf) == 0 {
			continue
		}

		req := APIRequest{}
		err := json.Unmarshal(buf, &req)
		if err != nil {
			log.Error(err)
		}

		if err = s.handler(s, conn, &req, buf, err); err != nil {
			log.Error(err)
		}

		if !s.bConnKeepAlive {
			// one connection per command as default
			break
		}
	}

	log.Debug("Server disconnected from ", conn.RemoteAddr())
}

func DefaultServerHandler(s *Server, conn net.Conn, req *APIRequest, rawbuf []byte, err error) error {
	resp, _ := PrepareJSONResponse(map[string]string{"error": "no handler installed"})
	_, werr := conn.Write(resp)
	return werr
}
