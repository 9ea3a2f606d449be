// etcd-backed Registry implementation.
//
// etcd acts as the phonebook for routers:
//
//	Key:   /app-bridge/{name}/{address}
//	Value: JSON-encoded RouterInstance
//
// Registration uses TTL-based leases: if the router crashes, the lease expires
// and the entry disappears on its own, so bridges never resolve a dead router
// for longer than the TTL.
package discovery

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdPrefix = "/app-bridge/"

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Register stores the instance under a TTL lease and starts background
// keepalive renewal. If keepalive stops (process death), the entry auto-expires.
func (r *EtcdRegistry) Register(name string, instance RouterInstance, ttl int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, etcdPrefix+name+"/"+instance.Address, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain keepalive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes an instance, typically during the router's graceful
// shutdown.
func (r *EtcdRegistry) Deregister(name string, address string) error {
	_, err := r.client.Delete(context.TODO(), etcdPrefix+name+"/"+address)
	return err
}

// Discover returns every instance currently registered under name.
func (r *EtcdRegistry) Discover(name string) ([]RouterInstance, error) {
	resp, err := r.client.Get(context.TODO(), etcdPrefix+name+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]RouterInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance RouterInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Watch emits the full instance list whenever anything changes under the name
// prefix (registration, deregistration, lease expiry). Server-push via etcd's
// watch API, no polling.
func (r *EtcdRegistry) Watch(name string) <-chan []RouterInstance {
	ch := make(chan []RouterInstance, 1)

	go func() {
		watchChan := r.client.Watch(context.TODO(), etcdPrefix+name+"/", clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list on any change; simpler than folding
			// individual watch events into a cache.
			instances, _ := r.Discover(name)
			ch <- instances
		}
	}()

	return ch
}

// Close releases the underlying etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
