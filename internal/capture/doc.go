// Package capture replays recorded ANT broadcasts into a stride decoder.
//
// A capture is a text file with one message per line in hex:
//
//	# plain channel message: channel, 8-byte payload
//	00 01 00 00 00 00 00 2A 00
//	# extended message: channel message, 0x80, device number (LE), device type, tx type
//	00 50 FF FF 03 01 00 0F 00 | 80 39 30 7C 01
//
// Messages are decoded through gopacket using the ANTMessage layer, so a
// capture can be inspected with the usual gopacket tooling:
//
//	source := gopacket.NewPacketSource(capture.NewReader(f), capture.LayerTypeANTMessage)
//	for packet := range source.Packets() {
//		fmt.Println(packet.Layer(capture.LayerTypeANTMessage))
//	}
//
// Replayer implements stride.ChannelManager. It emulates the channel search
// by pairing with the first device whose channel ID matches the requested
// parameters, and paces messages at the channel period unless told otherwise.
package capture
