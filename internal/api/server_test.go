package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"meetscribe/ai"
	"meetscribe/internal/config"
	"meetscribe/internal/service"
	"meetscribe/models"
	"meetscribe/voiceprint"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// jsonClient is a lightweight gRPC JSON client for the Control stream.
type jsonClient struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

func newJSONClient(t *testing.T, addr string) *jsonClient {
	t.Helper()

	conn, err := grpc.Dial(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			// Support unix:/path format
			if len(addr) > 5 && addr[:5] == "unix:" {
				return net.DialTimeout("unix", addr[5:], 3*time.Second)
			}
			return net.DialTimeout("tcp", addr, 3*time.Second)
		}),
	)
	if err != nil {
		t.Fatalf("dial grpc: %v", err)
	}

	stream, err := conn.NewStream(context.Background(), &_Control_serviceDesc.Streams[0], "/meetscribe.Control/Stream")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	return &jsonClient{conn: conn, stream: stream}
}

func (c *jsonClient) send(msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	// Send as generic interface{} so ForceCodec(jsonCodec{}) kicks in on server
	var any interface{}
	if err := json.Unmarshal(raw, &any); err != nil {
		return err
	}
	return c.stream.SendMsg(any)
}

func (c *jsonClient) recv(timeout time.Duration) (Message, error) {
	var msg Message
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	recvDone := make(chan error, 1)
	go func() { recvDone <- c.stream.RecvMsg(&msg) }()
	select {
	case err := <-recvDone:
		return msg, err
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (c *jsonClient) close() {
	_ = c.stream.CloseSend()
	_ = c.conn.Close()
}

// startTestServer запускает минимальный сервер с unix сокетом.
func startTestServer(t *testing.T, socketPath string) *Server {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := &config.Config{
		DataDir:   tmpDir,
		ModelsDir: tmpDir + "/models",
		Port:      "0",
		GRPCAddr:  "unix:" + socketPath,
		ModelID:   models.DefaultModelID,
		Provider:  "cpu",
	}

	// Инициализация зависимостей
	modelMgr, err := models.NewManager(cfg.ModelsDir)
	if err != nil {
		t.Fatalf("model manager: %v", err)
	}
	engineMgr := ai.NewEngineManager(modelMgr)
	store, err := voiceprint.NewStore(cfg.DataDir)
	if err != nil {
		t.Fatalf("voiceprint store: %v", err)
	}
	pipeline := service.NewPipeline(engineMgr, nil, service.Config{DataDir: cfg.DataDir})

	s := NewServer(cfg, pipeline, engineMgr, modelMgr, store)

	go s.startGRPCServer()
	time.Sleep(300 * time.Millisecond) // дать сокету создаться
	return s
}

// fakeControlStream эмулирует Control stream без сети: Recv читает из канала,
// закрытие канала = отключение клиента
type fakeControlStream struct {
	grpc.ServerStream
	ctx    context.Context
	recvCh chan *Message
}

func (f *fakeControlStream) Context() context.Context { return f.ctx }
func (f *fakeControlStream) Send(*Message) error      { return nil }
func (f *fakeControlStream) Recv() (*Message, error) {
	m, ok := <-f.recvCh
	if !ok {
		return nil, io.EOF
	}
	return m, nil
}

func TestControlStream_DisconnectDuringBroadcast(t *testing.T) {
	s := startTestServer(t, "/tmp/meetscribe-test-disconnect.sock")

	// Непрерывный поток событий, как от pipeline при смене статусов job
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.broadcastGRPC(Message{Type: "job_state", Status: "transcribing"})
			}
		}
	}()

	// Клиенты отключаются под потоком событий
	for i := 0; i < 100; i++ {
		stream := &fakeControlStream{ctx: context.Background(), recvCh: make(chan *Message)}
		streamDone := make(chan error, 1)
		go func() { streamDone <- s.Stream(stream) }()
		time.Sleep(time.Millisecond)
		close(stream.recvCh)
		if err := <-streamDone; err != io.EOF {
			t.Fatalf("iteration %d: Stream returned %v, want io.EOF", i, err)
		}
	}

	close(stop)
	wg.Wait()
}

func TestControlStream_ModelsAndStatus(t *testing.T) {
	socket := "/tmp/meetscribe-test.sock"
	// sanity check path syntax
	_, _ = net.Dial("unix", socket)

	s := startTestServer(t, socket)
	t.Cleanup(func() { _, _ = net.Dial("unix", socket) })
	// В тестовом сценарии HTTP сервер не нужен.

	client := newJSONClient(t, s.Config.GRPCAddr)
	defer client.close()

	if err := client.send(Message{Type: "get_models"}); err != nil {
		t.Fatalf("send get_models: %v", err)
	}
	if err := client.send(Message{Type: "get_status"}); err != nil {
		t.Fatalf("send get_status: %v", err)
	}

	gotModels := false
	gotStatus := false
	timeout := time.After(2 * time.Second)

	for !(gotModels && gotStatus) {
		select {
		case <-timeout:
			t.Fatalf("timeout waiting for responses: models=%v status=%v", gotModels, gotStatus)
		default:
			msg, err := client.recv(2 * time.Second)
			if err != nil {
				t.Fatalf("recv: %v", err)
			}
			switch msg.Type {
			case "models_list":
				gotModels = true
			case "status":
				if msg.Status != "degraded" {
					t.Errorf("expected degraded status without loaded engine, got %q", msg.Status)
				}
				gotStatus = true
			}
		}
	}
}
