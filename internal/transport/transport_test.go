package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestTCPChannelSendRecv(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewTCPChannel(client)
	defer ch.Close()

	go func() {
		buf := make([]byte, 4)
		server.Read(buf)
		server.Write([]byte{0, 0, 0, 9, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0, 0, 0})
	}()

	ctx := context.Background()
	if err := ch.Send(ctx, []byte{0, 0, 0, 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	head, err := ch.Recv(ctx, 4)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(head, []byte{0, 0, 0, 9}) {
		t.Fatalf("head = %v", head)
	}
	body, err := ch.RecvAligned(ctx, 5)
	if err != nil {
		t.Fatalf("recv aligned: %v", err)
	}
	if !bytes.Equal(body, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}) {
		t.Fatalf("body = %v", body)
	}
}

func TestTCPChannelClosed(t *testing.T) {
	client, _ := net.Pipe()
	ch := NewTCPChannel(client)
	ch.Close()
	if _, err := ch.Recv(context.Background(), 4); !errors.Is(err, ErrClosed) {
		t.Fatalf("recv after close: %v, want ErrClosed", err)
	}
}

func TestArc4KnownVector(t *testing.T) {
	c, err := NewArc4([]byte("a key"))
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 10)
	c.XORKeyStream(got, []byte("plain text"))
	want := []byte{0x4b, 0x4b, 0xdc, 0x65, 0x02, 0xb3, 0x08, 0x17, 0x48, 0x82}
	if !bytes.Equal(got, want) {
		t.Fatalf("arc4 = %x, want %x", got, want)
	}
}

func TestChaChaRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 20)
	nonce := bytes.Repeat([]byte{9}, 16)
	enc, err := NewChaCha(key, nonce)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewChaCha(key, nonce)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("attach database")
	ct := make([]byte, len(msg))
	enc.XORKeyStream(ct, msg)
	if bytes.Equal(ct, msg) {
		t.Fatal("ciphertext equals plaintext")
	}
	pt := make([]byte, len(ct))
	dec.XORKeyStream(pt, ct)
	if !bytes.Equal(pt, msg) {
		t.Fatalf("round trip = %q, want %q", pt, msg)
	}
}

func TestAsyncChannelEcho(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewAsyncChannel(client)
	defer ch.Close()

	go func() {
		buf := make([]byte, 8)
		server.Read(buf)
		server.Write(buf)
	}()

	ctx := context.Background()
	msg := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := ch.Send(ctx, msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := ch.Recv(ctx, 8)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("echo = %v, want %v", got, msg)
	}
}

func TestAsyncChannelCancel(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewAsyncChannel(client)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	// nothing will ever arrive; cancellation must unblock the caller
	_, err := ch.Recv(ctx, 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("recv = %v, want context.Canceled", err)
	}
	// the channel is unusable afterwards
	if err := ch.Send(context.Background(), []byte{0}); err == nil {
		t.Fatal("send after cancel succeeded, want error")
	}
}

func TestAsyncChannelCipherOrdering(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewAsyncChannel(client)
	defer ch.Close()

	enc, _ := NewArc4([]byte("session"))
	peer, _ := NewArc4([]byte("session"))
	ch.SetCipher(nil, enc)

	go func() {
		buf := make([]byte, 5)
		server.Read(buf)
		peer.XORKeyStream(buf, buf)
		server.Write(buf)
	}()

	ctx := context.Background()
	if err := ch.Send(ctx, []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := ch.Recv(ctx, 5)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("peer saw %q, want %q", got, "hello")
	}
}
