package ui

// iconBytes is a 16x16 PNG used as the tray icon on every platform.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x28, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x60, 0xa0, 0x06, 0x90,
	0x93, 0xd3, 0xfb, 0x4f, 0x0e, 0x86, 0x1b, 0xf0, 0xe1, 0xc3, 0x07, 0x14,
	0x09, 0x62, 0xf9, 0xd4, 0x73, 0xc1, 0xa8, 0x01, 0xa3, 0x06, 0x0c, 0x93,
	0xa4, 0x4c, 0x09, 0x00, 0x00, 0xb3, 0xbb, 0x27, 0xa4, 0x48, 0xad, 0x89,
	0x9e, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60,
	0x82,
}
