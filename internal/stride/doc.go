// Package stride decodes the ANT+ Stride Based Speed and Distance Monitor
// (SDM) device profile.
//
// A Decoder is bound to one foot pod. It is driven by an external ANT+
// channel stack (the ChannelManager) which opens the radio channel, searches
// for the device and delivers every broadcast received on the channel to
// OnMessage. The decoder keeps the latest value of each field it understands.
//
// # Channel Messages
//
// The channel stack prepends the channel number to the 8-byte broadcast
// payload, so every message is exactly 9 bytes:
//
//	byte 0      channel number (ignored)
//	byte 1      data page number
//	bytes 2-8   page specific fields
//
// Messages of any other length are dropped without error. Radio input is
// untrusted and the decoder never fails on it.
//
// # Data Pages
//
//	0x01  Stride data: stride count (payload byte 6)
//	0x02  Template (not decoded)
//	0x03  Calories (payload byte 6)
//	0x10  Distance and strides since battery reset (not decoded)
//	0x16  Capabilities (not decoded)
//	0x50  Manufacturer info: hardware revision, manufacturer ID, model number
//	0x51  Product info: software revision, serial number
//
// Pages outside this list are ignored so that newer pod firmware does not
// break older receivers.
//
// # Usage Example
//
//	dec := stride.NewDecoder(stride.WildcardDeviceNumber, 0, stride.CallbackFuncs{
//	    OnDeviceFound: func(num uint16, tt uint8) {
//	        fmt.Printf("paired with %d/%d\n", num, tt)
//	    },
//	})
//	if err := dec.Start(channelManager); err != nil {
//	    log.Fatal(err)
//	}
//
//	if steps, ok := dec.StrideCount(); ok {
//	    fmt.Println("strides:", steps)
//	}
//
// # Thread Safety
//
// OnMessage, DeviceFound and every accessor may be called concurrently. One
// mutex guards the whole state; Snapshot returns all fields copied under a
// single acquisition. Callbacks run after the lock is released, so they may
// call back into the decoder.
package stride
