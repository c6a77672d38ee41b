package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"projectflow/blobdisk"
	"projectflow/datastore"
	"projectflow/db"
	"projectflow/postgres"
	"projectflow/session"
	"projectflow/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	blobDir := os.Getenv("PORTAL_BLOB_DIR")
	if blobDir == "" {
		blobDir = "blobs"
	}
	blobs, err := blobdisk.New(blobDir, os.Getenv("PORTAL_BLOB_BASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap blob store: %v", err)
	}

	listener := postgres.NewListener(pool)
	go func() {
		if err := listener.Run(ctx); err != nil {
			log.Printf("realtime listener stopped: %v", err)
		}
	}()

	hub := session.NewHub()
	store := datastore.New(postgres.NewStore(pool), listener, hub, storage.NewUploader(blobs)).
		WithErrorHook(func(err error) { log.Printf("datastore: %v", err) })
	if err := store.Start(ctx); err != nil {
		log.Fatalf("start datastore: %v", err)
	}
	defer store.Stop()

	// A provider-issued access token seats the session; without one the
	// store idles unauthenticated until a session arrives by other means.
	if token := os.Getenv("PORTAL_ACCESS_TOKEN"); token != "" {
		verifier := session.NewVerifier(os.Getenv("PORTAL_JWT_SECRET"))
		sess, err := verifier.Verify(token)
		if err != nil {
			log.Fatalf("verify access token: %v", err)
		}
		hub.SetSession(sess)
	}

	log.Printf("portal datastore running")
	<-ctx.Done()
}
